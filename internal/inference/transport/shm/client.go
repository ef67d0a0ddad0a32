package shm

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/technosupport/cvpipeline/internal/inference"
	"github.com/technosupport/cvpipeline/internal/inference/transport/grpctensor"
)

const regionNamePrefix = "cvpipeline-infer"

// Client writes the preprocessed image into a shared-memory region and
// sends the server a reference to it rather than the bytes themselves,
// the highest-throughput transport for images at or above 640×640.
type Client struct {
	conn *grpc.ClientConn
}

func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("raw")),
	)
	if err != nil {
		return nil, fmt.Errorf("dial inference server: %w", err)
	}
	return &Client{conn: conn}, nil
}

// registerRequest/registerResponse and unregisterRequest mirror the shape
// grpctensor uses for the raw gob codec: plain structs, no generated
// stubs, registered under the same "raw" content-subtype.
type registerRequest struct {
	Name string
	Size int
}

type registerResponse struct {
	Error string
}

type unregisterRequest struct {
	Name string
}

type inferByRefRequest struct {
	ModelID       string
	RegionName    string
	Shape         []int64
	ConfThreshold float32
	NMSIoUThresh  float32
}

func (c *Client) Infer(ctx context.Context, modelID string, img inference.Tensor, params inference.RequestParams) (*inference.Result, error) {
	name, err := Name(regionNamePrefix)
	if err != nil {
		return nil, inference.Protocol(err)
	}

	byteSize := len(img.Data) * 4
	region, err := Create(name, byteSize)
	if err != nil {
		return nil, inference.Unavailable(fmt.Errorf("create shm region: %w", err))
	}
	defer region.Close()

	payload := make([]byte, byteSize)
	for i, v := range img.Data {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}
	if err := region.Write(payload); err != nil {
		return nil, inference.Protocol(err)
	}

	var regResp registerResponse
	if err := c.conn.Invoke(ctx, "/inference.InferenceService/Register", &registerRequest{Name: name, Size: byteSize}, &regResp); err != nil {
		return nil, classifyErr(ctx, err)
	}
	if regResp.Error != "" {
		return nil, inference.Protocol(fmt.Errorf("register failed: %s", regResp.Error))
	}
	region.SetUnregisterFunc(func() error {
		var noop registerResponse
		return c.conn.Invoke(context.Background(), "/inference.InferenceService/Unregister", &unregisterRequest{Name: name}, &noop)
	})

	req := &inferByRefRequest{
		ModelID:       modelID,
		RegionName:    name,
		Shape:         img.Shape,
		ConfThreshold: params.ConfThreshold,
		NMSIoUThresh:  params.NMSIoUThresh,
	}
	resp := &grpctensor.InferOutput{}
	if err := c.conn.Invoke(ctx, "/inference.InferenceService/InferByRef", req, resp); err != nil {
		return nil, classifyErr(ctx, err)
	}
	if resp.Error != "" {
		return nil, inference.Protocol(fmt.Errorf("server error: %s", resp.Error))
	}

	return &inference.Result{
		ModelID: modelID,
		Output:  inference.Tensor{Data: resp.Data, Shape: resp.Shape, DType: resp.DType},
	}, nil
}

func classifyErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return inference.Timeout(err)
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.Unavailable {
		return inference.Unavailable(err)
	}
	return inference.Protocol(err)
}

func (c *Client) Close() error { return c.conn.Close() }
