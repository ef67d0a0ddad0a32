// Package httpjson implements the simplest, highest-per-frame-overhead
// inference transport: base64-encode the image, POST to the model
// endpoint, parse the JSON response.
package httpjson

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/technosupport/cvpipeline/internal/inference"
)

// Client is a thin JSON-over-HTTP inference transport.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client with a per-call timeout bound, the same
// defensive construction every HTTP collaborator in this codebase uses.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

type request struct {
	ModelID string    `json:"model_id"`
	Shape   []int64   `json:"shape"`
	Image   string    `json:"image_b64"`
	Params  paramsDTO `json:"params"`
}

type paramsDTO struct {
	ConfThreshold float32 `json:"conf_threshold"`
	NMSIoUThresh  float32 `json:"nms_iou_thresh"`
}

type response struct {
	Shape []int64   `json:"shape"`
	DType string    `json:"dtype"`
	Data  []float32 `json:"data"`
	Error string    `json:"error,omitempty"`
}

func (c *Client) Infer(ctx context.Context, modelID string, img inference.Tensor, params inference.RequestParams) (*inference.Result, error) {
	raw := make([]byte, len(img.Data)*4)
	for i, v := range img.Data {
		bits := math.Float32bits(v)
		raw[i*4+0] = byte(bits)
		raw[i*4+1] = byte(bits >> 8)
		raw[i*4+2] = byte(bits >> 16)
		raw[i*4+3] = byte(bits >> 24)
	}

	body, err := json.Marshal(request{
		ModelID: modelID,
		Shape:   img.Shape,
		Image:   base64.StdEncoding.EncodeToString(raw),
		Params: paramsDTO{
			ConfThreshold: params.ConfThreshold,
			NMSIoUThresh:  params.NMSIoUThresh,
		},
	})
	if err != nil {
		return nil, inference.Protocol(fmt.Errorf("encode request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, inference.Protocol(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, inference.Timeout(err)
		}
		return nil, inference.Unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway {
		return nil, inference.Unavailable(fmt.Errorf("server returned %d", resp.StatusCode))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, inference.Protocol(fmt.Errorf("decode response: %w", err))
	}
	if out.Error != "" {
		return nil, inference.Protocol(fmt.Errorf("server error: %s", out.Error))
	}

	return &inference.Result{
		ModelID: modelID,
		Output:  inference.Tensor{Data: out.Data, Shape: out.Shape, DType: out.DType},
	}, nil
}

func (c *Client) Close() error { return nil }
