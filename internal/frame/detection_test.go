package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBBoxIoU(t *testing.T) {
	a := BBox{X: 0, Y: 0, W: 10, H: 10}
	b := BBox{X: 5, Y: 0, W: 10, H: 10}
	assert.InDelta(t, 1.0/3.0, a.IoU(b), 1e-9)

	c := BBox{X: 100, Y: 100, W: 10, H: 10}
	assert.Equal(t, 0.0, a.IoU(c))

	assert.Equal(t, 1.0, a.IoU(a))
}

func TestBBoxDegenerate(t *testing.T) {
	a := BBox{X: 0, Y: 0, W: 0, H: 10}
	assert.Equal(t, 0.0, a.Area())
	assert.Equal(t, 0.0, a.IoU(BBox{X: 0, Y: 0, W: 10, H: 10}))
}

func TestPointDist(t *testing.T) {
	p := Point{X: 0, Y: 0}
	q := Point{X: 3, Y: 4}
	assert.InDelta(t, 5.0, p.Dist(q), 1e-9)
}
