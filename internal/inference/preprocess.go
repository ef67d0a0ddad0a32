package inference

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// LetterboxInfo records the scale and padding applied during preprocessing
// so postprocessing can map model-space boxes back to the original frame.
type LetterboxInfo struct {
	ScaleX, ScaleY float64
	PadX, PadY     float64
	OrigWidth      int
	OrigHeight     int
}

// Letterbox resizes f to size×size preserving aspect ratio, padding the
// remainder with gray (114,114,114), converts HWC→CHW and normalizes to
// [0,1], and returns the resulting tensor plus the scale/pad info needed
// to undo the transform on detections.
func Letterbox(f *frame.Frame, size int) (Tensor, LetterboxInfo) {
	scale := float64(size) / float64(f.Width)
	if s := float64(size) / float64(f.Height); s < scale {
		scale = s
	}
	newW := int(float64(f.Width) * scale)
	newH := int(float64(f.Height) * scale)
	padX := float64(size-newW) / 2
	padY := float64(size-newH) / 2

	src := toRGBAFrame(f)
	resized := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.BiLinear.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Src, nil)

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	gray := color.RGBA{114, 114, 114, 255}
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: gray}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(int(padX), int(padY), int(padX)+newW, int(padY)+newH), resized, image.Point{}, draw.Src)

	data := make([]float32, 3*size*size)
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := canvas.At(x, y).RGBA()
			i := y*size + x
			data[0*plane+i] = float32(r>>8) / 255.0
			data[1*plane+i] = float32(g>>8) / 255.0
			data[2*plane+i] = float32(b>>8) / 255.0
		}
	}

	return Tensor{
			Data:  data,
			Shape: []int64{1, 3, int64(size), int64(size)},
			DType: "float32",
		}, LetterboxInfo{
			ScaleX: scale, ScaleY: scale,
			PadX: padX, PadY: padY,
			OrigWidth: f.Width, OrigHeight: f.Height,
		}
}

func toRGBAFrame(f *frame.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	stride := f.Stride()
	switch f.Channels {
	case 3:
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
	case 4:
		copy(img.Pix, f.Pix)
	default:
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				v := f.Pix[y*stride+x]
				di := img.PixOffset(x, y)
				img.Pix[di+0], img.Pix[di+1], img.Pix[di+2], img.Pix[di+3] = v, v, v, 0xff
			}
		}
	}
	return img
}

// Undo maps a box in letterboxed model-space back to original-frame
// pixel coordinates using the recorded scale and padding.
func (l LetterboxInfo) Undo(b frame.BBox) frame.BBox {
	return frame.BBox{
		X: (b.X - l.PadX) / l.ScaleX,
		Y: (b.Y - l.PadY) / l.ScaleY,
		W: b.W / l.ScaleX,
		H: b.H / l.ScaleY,
	}
}
