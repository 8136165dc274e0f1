package gmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVecOps(t *testing.T) {
	a := V2(3, 4)
	assert.InDelta(t, 5, a.Len(), 1e-6)

	n := a.Nor()
	assert.InDelta(t, 1, n.Len(), 1e-6)

	// Perp is orthogonal.
	assert.InDelta(t, 0, a.Dot(a.Perp()), 1e-6)

	// Normalizing zero stays zero instead of producing NaN.
	z := V2(0, 0).Nor()
	assert.Equal(t, V2(0, 0), z)

	assert.Equal(t, V2(4, 6), a.Add(V2(1, 2)))
	assert.Equal(t, V2(2, 2), a.Sub(V2(1, 2)))
	assert.Equal(t, V2(6, 8), a.Mul(2))
}

func TestOrthoMapsPixelsToClip(t *testing.T) {
	m := Ortho(800, 600)

	// Column-major multiply of (x, y, 0, 1).
	xf := func(x, y float32) (float32, float32) {
		cx := m[0]*x + m[4]*y + m[12]
		cy := m[1]*x + m[5]*y + m[13]
		return cx, cy
	}

	// Top-left pixel maps to clip (-1, +1), bottom-right to (+1, -1).
	cx, cy := xf(0, 0)
	assert.InDelta(t, -1, cx, 1e-6)
	assert.InDelta(t, 1, cy, 1e-6)

	cx, cy = xf(800, 600)
	assert.InDelta(t, 1, cx, 1e-6)
	assert.InDelta(t, -1, cy, 1e-6)

	cx, cy = xf(400, 300)
	assert.InDelta(t, 0, cx, 1e-6)
	assert.InDelta(t, 0, cy, 1e-6)
}
