package license

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher monitors the license file for changes and reloads.
// Supports both fsnotify and polling as fallback.
func (m *Manager) StartWatcher(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	usePolling := false

	if err != nil {
		log.Printf("License Watcher: fsnotify failed (%v), falling back to polling", err)
		usePolling = true
	} else {
		// Add Watch
		if err := watcher.Add(m.path); err != nil {
			// If file missing, watch directory?
			// But m.path is full file path "C:\...\license.lic".
			// fsnotify supports watching file. Only fails if file doesn't exist?
			// If missing, we should watch the directory or poll.
			// Let's assume Polling Fallback if Add fails (e.g., file not created yet).
			log.Printf("License Watcher: Failed to watch file %s (%v), falling back to polling", m.path, err)
			usePolling = true
			watcher.Close()
		}
	}

	// Watcher Loop
	go func() {
		if !usePolling {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
						log.Println("License Watcher: File changed, reloading...")
						// Debounce slightly?
						time.Sleep(100 * time.Millisecond)
						m.Reload()
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("License Watcher Error: %v", err)
				}
			}
		}
	}()

	// Polling Loop (Fallback or Redundancy - "at least one is required")
	// Prompt Rule 4: "If watcher fails -> poll every 60s (bounded)"
	// To be safe and handling "silent non-reload", we run Polling ALWAYS or just when fsnotify fails?
	// Plan said "fsnotify + 60s Polling Loop (Fallback)".
	// Let's run slow polling (60s) ALWAYS as safety net, in addition to watcher.

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mu.RLock()
				m.mu.RUnlock()

				// Re-Check file
				m.ReloadIfChanged() // Wrapper
			}
		}
	}()
}

// ReloadIfChanged re-parses the license file. Called from the 60s polling
// fallback; Reload() itself is cheap enough not to need an mtime guard.
func (m *Manager) ReloadIfChanged() {
	m.Reload()
}
