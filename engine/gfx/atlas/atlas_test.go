package atlas

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFirstRect(t *testing.T) {
	tr := New()
	r, err := tr.Allocate(0.25, 0.25, 1)
	require.NoError(t, err)
	assert.Equal(t, Rect{0, 0, 0.25, 0.25}, r)
}

func TestAllocateSecondGoesRight(t *testing.T) {
	tr := New()
	_, err := tr.Allocate(0.25, 0.25, 1)
	require.NoError(t, err)

	r, err := tr.Allocate(0.25, 0.25, 2)
	require.NoError(t, err)
	assert.Equal(t, Rect{0.25, 0, 0.25, 0.25}, r)
}

func TestAllocateTooBig(t *testing.T) {
	tr := New()
	_, err := tr.Allocate(1.5, 0.5, 1)
	assert.ErrorIs(t, err, ErrSpaceTooSmall)

	_, err = tr.Allocate(0, 0.5, 1)
	assert.ErrorIs(t, err, ErrSpaceTooSmall)
}

func TestAllocateFullPageThenFail(t *testing.T) {
	tr := New()
	_, err := tr.Allocate(1, 1, 1)
	require.NoError(t, err)

	_, err = tr.Allocate(0.01, 0.01, 2)
	assert.ErrorIs(t, err, ErrSpaceTooSmall)
}

func TestRectFor(t *testing.T) {
	tr := New()
	want, err := tr.Allocate(0.5, 0.125, 7)
	require.NoError(t, err)
	_, err = tr.Allocate(0.25, 0.25, 8)
	require.NoError(t, err)

	got, ok := tr.RectFor(7)
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = tr.RectFor(99)
	assert.False(t, ok)
}

func TestNoOverlap(t *testing.T) {
	// Pack random rects until the page rejects a few in a row, then verify
	// pairwise disjointness of everything that was accepted.
	rng := rand.New(rand.NewSource(1))
	tr := New()
	var placed []Rect
	misses := 0
	for id := uint64(0); misses < 50; id++ {
		w := 0.01 + rng.Float32()*0.3
		h := 0.01 + rng.Float32()*0.3
		r, err := tr.Allocate(w, h, id)
		if err != nil {
			misses++
			continue
		}
		placed = append(placed, r)
	}
	require.NotEmpty(t, placed)

	for i := 0; i < len(placed); i++ {
		for j := i + 1; j < len(placed); j++ {
			assert.False(t, placed[i].Intersects(placed[j]),
				"rects %d and %d overlap: %+v vs %+v", i, j, placed[i], placed[j])
		}
	}
}

func TestRectsStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tr := New()
	for id := uint64(0); id < 200; id++ {
		w := 0.01 + rng.Float32()*0.2
		h := 0.01 + rng.Float32()*0.2
		r, err := tr.Allocate(w, h, id)
		if err != nil {
			continue
		}
		assert.GreaterOrEqual(t, r.X, float32(0))
		assert.GreaterOrEqual(t, r.Y, float32(0))
		assert.LessOrEqual(t, r.X+r.W, float32(1.0001))
		assert.LessOrEqual(t, r.Y+r.H, float32(1.0001))
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tr := New()
	_, err := tr.Allocate(0.5, 0.5, 1)
	require.NoError(t, err)

	cl := tr.Clone()
	_, err = cl.Allocate(0.5, 0.5, 2)
	require.NoError(t, err)

	_, ok := cl.RectFor(2)
	assert.True(t, ok)
	_, ok = tr.RectFor(2)
	assert.False(t, ok, "allocation in clone leaked into original")
}

func TestWalkVisitsAllOccupied(t *testing.T) {
	tr := New()
	ids := []uint64{10, 11, 12, 13}
	for _, id := range ids {
		_, err := tr.Allocate(0.2, 0.2, id)
		require.NoError(t, err)
	}

	seen := map[uint64]bool{}
	tr.Walk(func(id uint64, r Rect) { seen[id] = true })
	for _, id := range ids {
		assert.True(t, seen[id], "id %d missing from walk", id)
	}
}
