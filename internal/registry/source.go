package registry

import "github.com/technosupport/cvpipeline/internal/source"

// Frame source type tags (spec §4.1's protocol field).
const (
	SourceLive = "live"
	SourceFile = "file"
)

// NewSourceRegistry builds a Kind registry over frame sources.
func NewSourceRegistry(entitlements Entitlements) *Kind[source.Source] {
	return NewKind[source.Source]("source", entitlements)
}
