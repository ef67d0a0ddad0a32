package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/frame"
	"github.com/technosupport/cvpipeline/internal/pipeline"
)

type allowAll struct{}

func (allowAll) Allows(string, string) bool { return true }

type denyAll struct{}

func (denyAll) Allows(string, string) bool { return false }

type fakeDetector struct{}

func (fakeDetector) Detect(context.Context, *frame.Frame, string) ([]frame.Detection, *frame.Frame, error) {
	return nil, nil, nil
}

type fakeTracker struct{}

func (fakeTracker) Track(context.Context, []frame.Detection, *frame.Frame, string) ([]*frame.Track, *frame.Frame, []frame.Event) {
	return nil, nil, nil
}

type fakeZone struct{}

func (fakeZone) Evaluate([]*frame.Track, *frame.Frame, string) (*frame.Frame, []frame.Event) {
	return nil, nil
}

func TestKindBuildUnknownTagRejected(t *testing.T) {
	k := NewKind[pipeline.DetectorStage]("processor", allowAll{})
	_, err := k.Build("nope", "id1", nil)
	assert.Error(t, err)
}

func TestKindBuildRejectsUnentitled(t *testing.T) {
	k := NewKind[pipeline.DetectorStage]("processor", denyAll{})
	k.Register("yolo", func(string, map[string]any) (pipeline.DetectorStage, error) {
		return fakeDetector{}, nil
	})
	_, err := k.Build("yolo", "id1", nil)
	assert.ErrorContains(t, err, "not entitled")
}

func TestKindBuildSucceeds(t *testing.T) {
	k := NewKind[pipeline.DetectorStage]("processor", allowAll{})
	k.Register("yolo", func(string, map[string]any) (pipeline.DetectorStage, error) {
		return fakeDetector{}, nil
	})
	d, err := k.Build("YOLO", "id1", nil)
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestChainBuilderRejectsTrackerWithoutDetector(t *testing.T) {
	cb := NewChainBuilder(allowAll{})
	cb.RegisterTracker(ProcessorTracker, func(string, map[string]any) (pipeline.TrackerStage, error) {
		return fakeTracker{}, nil
	})

	_, err := cb.Build([]ProcessorSpec{{TypeTag: ProcessorTracker, ID: "t1"}})
	assert.ErrorContains(t, err, "requires")
}

func TestChainBuilderBuildsOrderedChain(t *testing.T) {
	cb := NewChainBuilder(allowAll{})
	cb.RegisterDetector(ProcessorDetector, func(string, map[string]any) (pipeline.DetectorStage, error) {
		return fakeDetector{}, nil
	})
	cb.RegisterTracker(ProcessorTracker, func(string, map[string]any) (pipeline.TrackerStage, error) {
		return fakeTracker{}, nil
	})
	cb.RegisterLineZones(ProcessorLineZones, func(string, map[string]any) (pipeline.ZoneStage, error) {
		return fakeZone{}, nil
	})

	chain, err := cb.Build([]ProcessorSpec{
		{TypeTag: ProcessorDetector, ID: "d1"},
		{TypeTag: ProcessorTracker, ID: "t1"},
		{TypeTag: ProcessorLineZones, ID: "z1"},
	})
	require.NoError(t, err)
	assert.NotNil(t, chain.Detector)
	assert.NotNil(t, chain.Tracker)
	assert.NotNil(t, chain.LineZones)
	assert.Nil(t, chain.PolyZones)
}

func TestChainBuilderRejectsUnknownProcessorType(t *testing.T) {
	cb := NewChainBuilder(allowAll{})
	_, err := cb.Build([]ProcessorSpec{{TypeTag: "not_a_stage", ID: "x"}})
	assert.Error(t, err)
}
