package videowriter

import (
	"image/color"
	"strconv"

	"github.com/technosupport/cvpipeline/internal/frame"
)

// digitGlyphs is a 3x5 bitmap font, one row-major bitmask per digit, used
// to stamp the frame counter directly into the pixel buffer the same way
// the original sink burns it in with a font renderer — text shadow for
// visibility, white fill on top.
var digitGlyphs = [10]uint16{
	0b111_101_101_101_111, // 0
	0b010_110_010_010_111, // 1
	0b111_001_111_100_111, // 2
	0b111_001_111_001_111, // 3
	0b101_101_111_001_001, // 4
	0b111_100_111_001_111, // 5
	0b111_100_111_101_111, // 6
	0b111_001_001_001_001, // 7
	0b111_101_111_101_111, // 8
	0b111_101_111_001_111, // 9
}

const (
	glyphW     = 3
	glyphH     = 5
	glyphScale = 2
	glyphGap   = 1
)

// drawFrameNumber burns the running frame count into the bottom-right
// corner: a black shadow offset by one pixel, then white digits on top.
func drawFrameNumber(f *frame.Frame, n uint64) {
	text := strconv.FormatUint(n, 10)
	w := len(text)*(glyphW*glyphScale+glyphGap) - glyphGap
	h := glyphH * glyphScale
	x0 := f.Width - w - 10
	y0 := f.Height - h - 10

	drawText(f, text, x0+1, y0+1, color.RGBA{A: 255})
	drawText(f, text, x0, y0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
}

func drawText(f *frame.Frame, text string, x, y int, c color.RGBA) {
	cursor := x
	for _, r := range text {
		if r < '0' || r > '9' {
			continue
		}
		drawGlyph(f, digitGlyphs[r-'0'], cursor, y, c)
		cursor += glyphW*glyphScale + glyphGap
	}
}

func drawGlyph(f *frame.Frame, bits uint16, x, y int, c color.RGBA) {
	for row := 0; row < glyphH; row++ {
		for col := 0; col < glyphW; col++ {
			bitIndex := glyphH*glyphW - 1 - (row*glyphW + col)
			if bits&(1<<uint(bitIndex)) == 0 {
				continue
			}
			for sy := 0; sy < glyphScale; sy++ {
				for sx := 0; sx < glyphScale; sx++ {
					setPixel(f, x+col*glyphScale+sx, y+row*glyphScale+sy, c)
				}
			}
		}
	}
}

func setPixel(f *frame.Frame, x, y int, c color.RGBA) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height || f.Channels < 3 {
		return
	}
	i := y*f.Stride() + x*f.Channels
	f.Pix[i+0] = c.R
	f.Pix[i+1] = c.G
	f.Pix[i+2] = c.B
}
