package source

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// resizeIfNeeded bilinear-resizes f to width x height when they differ from
// the frame's current dimensions, as required when the decoder's native
// output doesn't match the configured resolution.
func resizeIfNeeded(f *frame.Frame, width, height int) *frame.Frame {
	if f == nil || (f.Width == width && f.Height == height) || width <= 0 || height <= 0 {
		return f
	}

	src := toRGBA(f)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return fromRGBA(dst, f.CapturedAtMS)
}

func toRGBA(f *frame.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	switch f.Channels {
	case 4:
		copy(img.Pix, f.Pix)
	case 3:
		stride := f.Stride()
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				si := y*stride + x*3
				di := img.PixOffset(x, y)
				img.Pix[di+0] = f.Pix[si+0]
				img.Pix[di+1] = f.Pix[si+1]
				img.Pix[di+2] = f.Pix[si+2]
				img.Pix[di+3] = 0xff
			}
		}
	case 1:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				v := f.Pix[y*f.Stride()+x]
				di := img.PixOffset(x, y)
				img.Pix[di+0] = v
				img.Pix[di+1] = v
				img.Pix[di+2] = v
				img.Pix[di+3] = 0xff
			}
		}
	default:
		// Unknown channel layout: return a black frame of the right
		// shape rather than guessing at a conversion.
	}
	return img
}

func fromRGBA(img *image.RGBA, capturedAtMS int64) *frame.Frame {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			i := (y*w + x) * 3
			pix[i+0] = uint8(r >> 8)
			pix[i+1] = uint8(g >> 8)
			pix[i+2] = uint8(b >> 8)
		}
	}
	return &frame.Frame{Width: w, Height: h, Channels: 3, Pix: pix, CapturedAtMS: capturedAtMS}
}
