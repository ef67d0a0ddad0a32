// Package grpctensor implements the gRPC-tensor inference transport:
// send an InferInput (name, shape, dtype, raw bytes), receive an
// InferOutput, parse the dtype-typed output into an f32 tensor.
package grpctensor

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/technosupport/cvpipeline/internal/inference"
)

// InferInput is the wire request, gob-encoded by the "raw" codec.
type InferInput struct {
	ModelID       string
	Name          string
	Shape         []int64
	DType         string
	Data          []float32
	ConfThreshold float32
	NMSIoUThresh  float32
}

// InferOutput is the wire response.
type InferOutput struct {
	Shape []int64
	DType string
	Data  []float32
	Error string
}

const inferMethod = "/inference.InferenceService/Infer"

// Client dials a model server over gRPC using the raw codec in place of
// generated protobuf stubs.
type Client struct {
	conn *grpc.ClientConn
}

// New dials addr exactly as the media plane client does: grpc.NewClient
// with insecure transport credentials, trusting the network boundary to
// the inference server is otherwise secured (mTLS is a deployment
// concern, not wired here since the pack carries no cert material).
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial inference server: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Infer(ctx context.Context, modelID string, img inference.Tensor, params inference.RequestParams) (*inference.Result, error) {
	req := &InferInput{
		ModelID:       modelID,
		Name:          "input",
		Shape:         img.Shape,
		DType:         img.DType,
		Data:          img.Data,
		ConfThreshold: params.ConfThreshold,
		NMSIoUThresh:  params.NMSIoUThresh,
	}
	resp := &InferOutput{}

	if err := c.conn.Invoke(ctx, inferMethod, req, resp); err != nil {
		if ctx.Err() != nil {
			return nil, inference.Timeout(err)
		}
		if isUnavailable(err) {
			return nil, inference.Unavailable(err)
		}
		return nil, inference.Protocol(err)
	}
	if resp.Error != "" {
		return nil, inference.Protocol(fmt.Errorf("server error: %s", resp.Error))
	}

	return &inference.Result{
		ModelID: modelID,
		Output:  inference.Tensor{Data: resp.Data, Shape: resp.Shape, DType: resp.DType},
	}, nil
}

func (c *Client) Close() error { return c.conn.Close() }
