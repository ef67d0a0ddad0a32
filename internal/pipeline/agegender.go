package pipeline

import (
	"context"

	"github.com/technosupport/cvpipeline/internal/frame"
	"github.com/technosupport/cvpipeline/internal/inference"
)

// AgeGenderConfig configures the age/gender model. Its output tensor is a
// 2-element vector: [0] an age estimate in years, [1] a male-probability
// score used to derive a "male"/"female" label at ConfThreshold.
type AgeGenderConfig struct {
	ModelID       string
	InputSize     int
	ConfThreshold float32
}

// AgeGender follows the same Inference Client pattern as Classifier,
// cropped to each track, but decodes two heads (age, gender) instead of
// one label and emits them both on a single EventClassification event per
// spec's event-type enum (age/gender doesn't get its own type).
type AgeGender struct {
	client inference.Client
	cfg    AgeGenderConfig
}

func NewAgeGender(client inference.Client, cfg AgeGenderConfig) *AgeGender {
	return &AgeGender{client: client, cfg: cfg}
}

func (a *AgeGender) Classify(ctx context.Context, tracks []*frame.Track, raw *frame.Frame, cameraID string) []frame.Event {
	var events []frame.Event
	for _, tr := range tracks {
		crop := cropFrame(raw, tr.BBox)
		if crop == nil {
			continue
		}

		tensor, _ := inference.Letterbox(crop, a.cfg.InputSize)
		res, err := a.client.Infer(ctx, a.cfg.ModelID, tensor, inference.RequestParams{
			InputSize:     a.cfg.InputSize,
			ConfThreshold: a.cfg.ConfThreshold,
		})
		if err != nil || len(res.Output.Data) < 2 {
			continue
		}

		age := res.Output.Data[0]
		maleProb := res.Output.Data[1]

		var gender string
		var genderConf float32
		if maleProb >= 0.5 {
			gender, genderConf = "male", maleProb
		} else {
			gender, genderConf = "female", 1-maleProb
		}
		if genderConf < a.cfg.ConfThreshold {
			continue
		}

		trackID := tr.TrackID
		events = append(events, frame.Event{
			Type:        frame.EventClassification,
			CameraID:    cameraID,
			TimestampMS: frame.NowMS(),
			TrackID:     &trackID,
			Properties: map[string]any{
				"age":        age,
				"gender":     gender,
				"confidence": genderConf,
			},
		})
	}
	return events
}
