package source

// decoder models the result of a one-time hardware-acceleration probe:
// which backend will actually decode frames for this source.
type decoder struct {
	backend HWAccel
}

// probeOrder is consulted when the caller asked for "auto": prefer the
// first available of nvidia, vaapi, omx; fall back to software.
var probeOrder = []HWAccel{HWAccelNVIDIA, HWAccelVAAPI, HWAccelOMX}

// availableBackends is populated by platform-specific probing. Real
// detection (querying the GStreamer plugin registry, NVDEC/VAAPI/OMX
// presence) belongs to the decode toolchain, which is an external
// collaborator per the pipeline's scope; this package exposes the seam so
// a concrete decode backend can report itself here at process start.
var availableBackends = map[HWAccel]bool{}

// RegisterAvailableBackend marks a hardware backend as usable on this
// host. Called once by the platform-specific decode integration during
// process init.
func RegisterAvailableBackend(b HWAccel) {
	availableBackends[b] = true
}

// ProbeHWAccel resolves the requested preference to a concrete backend,
// probing the decode toolchain once. Falls back to software decode if
// nothing is available.
func ProbeHWAccel(requested HWAccel) decoder {
	if requested != HWAccelAuto && requested != "" {
		if requested == HWAccelNone || availableBackends[requested] {
			return decoder{backend: requested}
		}
		// Requested a specific backend that isn't available: fall
		// through to auto-selection rather than failing the whole
		// camera over a decode preference.
	}

	for _, b := range probeOrder {
		if availableBackends[b] {
			return decoder{backend: b}
		}
	}
	return decoder{backend: HWAccelNone}
}
