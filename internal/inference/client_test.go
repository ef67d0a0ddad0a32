package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeClient struct {
	result *Result
	err    error
}

func (f *fakeClient) Infer(context.Context, string, Tensor, RequestParams) (*Result, error) {
	return f.result, f.err
}
func (f *fakeClient) Close() error { return nil }

func TestKindOfRecognizesWrappedErrors(t *testing.T) {
	err := Unavailable(errors.New("boom"))
	assert.Equal(t, KindUnavailable, KindOf(err))

	err = Protocol(errors.New("boom"))
	assert.Equal(t, KindProtocol, KindOf(err))

	err = Timeout(errors.New("boom"))
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestKindOfDefaultsToProtocolForForeignErrors(t *testing.T) {
	assert.Equal(t, KindProtocol, KindOf(errors.New("not ours")))
}

func TestNewRejectsUnknownTransport(t *testing.T) {
	_, err := New(Config{Transport: "bogus"})
	assert.Error(t, err)
}

func TestFakeClientSatisfiesInterface(t *testing.T) {
	var c Client = &fakeClient{result: &Result{ModelID: "m"}}
	res, err := c.Infer(context.Background(), "m", Tensor{}, RequestParams{})
	assert.NoError(t, err)
	assert.Equal(t, "m", res.ModelID)
}
