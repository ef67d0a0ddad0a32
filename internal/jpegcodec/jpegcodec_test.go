package jpegcodec

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/cvpipeline/internal/frame"
)

func TestEncodeProducesValidJPEG(t *testing.T) {
	f := &frame.Frame{Width: 8, Height: 8, Channels: 3, Pix: make([]byte, 8*8*3)}
	for i := range f.Pix {
		f.Pix[i] = byte(i % 255)
	}

	out, err := Encode(f, 85)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestEncodeClampsQuality(t *testing.T) {
	f := &frame.Frame{Width: 2, Height: 2, Channels: 3, Pix: make([]byte, 12)}
	_, err := Encode(f, 500)
	require.NoError(t, err)
	_, err = Encode(f, -10)
	require.NoError(t, err)
}

func TestEncodeRejectsNilFrame(t *testing.T) {
	_, err := Encode(nil, 80)
	assert.Error(t, err)
}
