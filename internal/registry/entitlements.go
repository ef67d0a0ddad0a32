package registry

import "github.com/technosupport/cvpipeline/internal/license"

// premiumProcessors gates processor type tags that require an explicit
// feature flag in the license payload on top of a valid/grace license —
// the zone managers and classification stages are growth-pack features,
// detection/tracking are baseline.
var premiumProcessors = map[string]string{
	ProcessorLineZones:  "zones",
	ProcessorPolyZones:  "zones",
	ProcessorClassifier: "classification",
	ProcessorAgeGender:  "age_gender",
}

// LicenseEntitlements adapts a license.Manager to the registry's
// Entitlements contract: base components are allowed under any
// non-blocked license state, premium component types require the
// corresponding feature flag to be explicitly enabled in the license
// payload's Features map.
type LicenseEntitlements struct {
	manager *license.Manager
}

// NewLicenseEntitlements wraps a license.Manager for use by registry.Kind.
func NewLicenseEntitlements(manager *license.Manager) *LicenseEntitlements {
	return &LicenseEntitlements{manager: manager}
}

func (e *LicenseEntitlements) Allows(componentKind, typeTag string) bool {
	state := e.manager.GetState()

	switch state.Status {
	case license.StatusMissing, license.StatusParseError, license.StatusInvalidSignature, license.StatusExpiredBlocked:
		return false
	}

	if componentKind != "processor" {
		return true
	}

	feature, premium := premiumProcessors[typeTag]
	if !premium {
		return true
	}
	if state.Payload == nil {
		return false
	}
	return state.Payload.Features[feature]
}
