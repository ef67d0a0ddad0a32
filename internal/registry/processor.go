package registry

import (
	"errors"
	"fmt"

	"github.com/technosupport/cvpipeline/internal/pipeline"
)

// ErrMissingDependency marks a processor whose prerequisite type tag
// wasn't built earlier in the same chain.
var ErrMissingDependency = errors.New("registry: missing dependency")

// Processor type tags, matching the stages a Chain can run.
const (
	ProcessorDetector   = "detector"
	ProcessorTracker    = "tracker"
	ProcessorLineZones  = "line_zones"
	ProcessorPolyZones  = "polygon_zones"
	ProcessorClassifier = "classification"
	ProcessorAgeGender  = "age_gender"
)

// processorRequires encodes the prerequisite edges from spec §4.3: the
// tracker requires a detector, and both zone managers require a tracker.
// Classification stages run against tracker output too but are optional
// even when a tracker is present.
var processorRequires = map[string]string{
	ProcessorTracker:    ProcessorDetector,
	ProcessorLineZones:  ProcessorTracker,
	ProcessorPolyZones:  ProcessorTracker,
}

// ProcessorSpec is one entry in a camera's processor chain configuration.
type ProcessorSpec struct {
	TypeTag string
	ID      string
	Config  map[string]any
}

// ChainBuilder builds a pipeline.Chain from an ordered list of processor
// specs, checking each one's prerequisite is already present in the same
// chain before constructing it.
type ChainBuilder struct {
	detector   *Kind[pipeline.DetectorStage]
	tracker    *Kind[pipeline.TrackerStage]
	lineZones  *Kind[pipeline.ZoneStage]
	polyZones  *Kind[pipeline.ZoneStage]
	classifier *Kind[pipeline.ClassifierStage]
	ageGender  *Kind[pipeline.ClassifierStage]
}

// NewChainBuilder wires one Kind registry per processor stage, all
// sharing the same Entitlements source.
func NewChainBuilder(entitlements Entitlements) *ChainBuilder {
	return &ChainBuilder{
		detector:   NewKind[pipeline.DetectorStage]("processor", entitlements),
		tracker:    NewKind[pipeline.TrackerStage]("processor", entitlements),
		lineZones:  NewKind[pipeline.ZoneStage]("processor", entitlements),
		polyZones:  NewKind[pipeline.ZoneStage]("processor", entitlements),
		classifier: NewKind[pipeline.ClassifierStage]("processor", entitlements),
		ageGender:  NewKind[pipeline.ClassifierStage]("processor", entitlements),
	}
}

func (b *ChainBuilder) RegisterDetector(tag string, f Factory[pipeline.DetectorStage]) { b.detector.Register(tag, f) }
func (b *ChainBuilder) RegisterTracker(tag string, f Factory[pipeline.TrackerStage])   { b.tracker.Register(tag, f) }
func (b *ChainBuilder) RegisterLineZones(tag string, f Factory[pipeline.ZoneStage])    { b.lineZones.Register(tag, f) }
func (b *ChainBuilder) RegisterPolyZones(tag string, f Factory[pipeline.ZoneStage])    { b.polyZones.Register(tag, f) }
func (b *ChainBuilder) RegisterClassifier(tag string, f Factory[pipeline.ClassifierStage]) { b.classifier.Register(tag, f) }
func (b *ChainBuilder) RegisterAgeGender(tag string, f Factory[pipeline.ClassifierStage])  { b.ageGender.Register(tag, f) }

// Build constructs a Chain from specs, enforcing the dependency graph:
// a spec whose prerequisite type tag isn't present earlier in the list
// is rejected before any factory runs.
func (b *ChainBuilder) Build(specs []ProcessorSpec) (*pipeline.Chain, error) {
	present := map[string]bool{}
	chain := &pipeline.Chain{}

	for _, spec := range specs {
		if req, ok := processorRequires[spec.TypeTag]; ok && !present[req] {
			return nil, fmt.Errorf("processor %q requires %q earlier in the chain: %w", spec.TypeTag, req, ErrMissingDependency)
		}

		switch spec.TypeTag {
		case ProcessorDetector:
			d, err := b.detector.Build(spec.TypeTag, spec.ID, spec.Config)
			if err != nil {
				return nil, err
			}
			chain.Detector = d
		case ProcessorTracker:
			tr, err := b.tracker.Build(spec.TypeTag, spec.ID, spec.Config)
			if err != nil {
				return nil, err
			}
			chain.Tracker = tr
		case ProcessorLineZones:
			z, err := b.lineZones.Build(spec.TypeTag, spec.ID, spec.Config)
			if err != nil {
				return nil, err
			}
			chain.LineZones = z
		case ProcessorPolyZones:
			z, err := b.polyZones.Build(spec.TypeTag, spec.ID, spec.Config)
			if err != nil {
				return nil, err
			}
			chain.PolyZones = z
		case ProcessorClassifier:
			c, err := b.classifier.Build(spec.TypeTag, spec.ID, spec.Config)
			if err != nil {
				return nil, err
			}
			chain.Classifier = c
		case ProcessorAgeGender:
			c, err := b.ageGender.Build(spec.TypeTag, spec.ID, spec.Config)
			if err != nil {
				return nil, err
			}
			chain.AgeGender = c
		default:
			return nil, fmt.Errorf("processor %q: %w", spec.TypeTag, ErrUnknownType)
		}

		present[spec.TypeTag] = true
	}

	return chain, nil
}
