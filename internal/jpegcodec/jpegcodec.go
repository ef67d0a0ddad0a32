// Package jpegcodec encodes decoded frames to JPEG bytes for the
// get_frame/get_raw_frame control-plane endpoints. It is a thin seam
// around the standard library's image/jpeg encoder — no pack example
// wraps a third-party JPEG library, and stdlib's encoder already covers
// the spec's only requirement (a quality-clamped baseline JPEG).
package jpegcodec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// Encode renders f to baseline JPEG at the given quality, clamped to
// [1, 100] per spec §6 ("JPEG, quality 1-100 clamped").
func Encode(f *frame.Frame, quality int) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("jpegcodec: nil frame")
	}
	if quality < 1 {
		quality = 1
	} else if quality > 100 {
		quality = 100
	}

	img := toRGBA(f)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpegcodec: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func toRGBA(f *frame.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	stride := f.Stride()

	for y := 0; y < f.Height; y++ {
		srcRow := y * stride
		dstRow := img.PixOffset(0, y)
		for x := 0; x < f.Width; x++ {
			si := srcRow + x*f.Channels
			di := dstRow + x*4
			switch f.Channels {
			case 1:
				g := f.Pix[si]
				img.Pix[di+0], img.Pix[di+1], img.Pix[di+2] = g, g, g
			case 3:
				img.Pix[di+0] = f.Pix[si+0]
				img.Pix[di+1] = f.Pix[si+1]
				img.Pix[di+2] = f.Pix[si+2]
			default:
				img.Pix[di+0] = f.Pix[si+0]
				img.Pix[di+1] = f.Pix[si+1]
				img.Pix[di+2] = f.Pix[si+2]
			}
			img.Pix[di+3] = 255
		}
	}
	return img
}
