// Package inference implements the Inference Client component (C2): a
// uniform request/response contract over three transports to a remote
// model server. Parsing the raw tensor into Detection/Classification/
// AgeGender records is the caller's job (internal/pipeline).
package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/technosupport/cvpipeline/internal/metrics"
)

// Tensor is a dense numeric buffer plus shape metadata, used for both
// preprocessed inputs and raw model outputs.
type Tensor struct {
	Data  []float32
	Shape []int64
	DType string // "float32" unless the transport says otherwise
}

// RequestParams carries per-call tuning that doesn't belong in the model
// configuration: confidence threshold, NMS IoU threshold, input size.
type RequestParams struct {
	InputSize     int
	ConfThreshold float32
	NMSIoUThresh  float32
	Timeout       time.Duration
}

// Result is the raw tensor plus shape metadata returned by a model
// server; InferResult in spec terms.
type Result struct {
	ModelID string
	Output  Tensor
}

// Kind classifies an inference failure so the scheduler can decide
// whether to skip the frame or suspend the camera.
type Kind int

const (
	KindUnavailable Kind = iota
	KindProtocol
	KindTimeout
)

// Error wraps a transport failure with its Kind. The client never
// retries within one Infer call; retry is the scheduler's choice.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnavailable:
		return fmt.Sprintf("inference: server unavailable: %v", e.Err)
	case KindTimeout:
		return fmt.Sprintf("inference: timeout: %v", e.Err)
	default:
		return fmt.Sprintf("inference: protocol error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Unavailable(err error) error { return &Error{Kind: KindUnavailable, Err: err} }
func Protocol(err error) error    { return &Error{Kind: KindProtocol, Err: err} }
func Timeout(err error) error     { return &Error{Kind: KindTimeout, Err: err} }

// KindOf extracts the Kind from an error produced by this package,
// defaulting to Protocol for anything it doesn't recognize.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindProtocol
}

// Client is the uniform contract every transport satisfies.
type Client interface {
	Infer(ctx context.Context, modelID string, img Tensor, params RequestParams) (*Result, error)
	Close() error
}

// instrumentedClient wraps a transport Client with the pipeline_inference_*
// metrics, so every transport gets latency/error observability for free
// instead of each one recording it separately.
type instrumentedClient struct {
	inner Client
}

func withMetrics(c Client) Client { return &instrumentedClient{inner: c} }

func (c *instrumentedClient) Infer(ctx context.Context, modelID string, img Tensor, params RequestParams) (*Result, error) {
	start := time.Now()
	res, err := c.inner.Infer(ctx, modelID, img, params)
	metrics.RecordInference(modelID, float64(time.Since(start).Milliseconds()), err)
	return res, err
}

func (c *instrumentedClient) Close() error { return c.inner.Close() }
