package texcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilngfx/kiln/engine/gfx/atlas"
	"github.com/kilngfx/kiln/engine/gfx/headless"
)

func solidPixels(w, h int) []byte {
	pix := make([]byte, 4*w*h)
	for i := range pix {
		pix[i] = 0xff
	}
	return pix
}

func newCache(t *testing.T, pageW, pageH, maxPages int) (*Cache, *headless.Device) {
	t.Helper()
	dev := headless.New(0)
	c, err := New(dev, nil, pageW, pageH, maxPages)
	require.NoError(t, err)
	return c, dev
}

func TestWhiteHandleReserved(t *testing.T) {
	c, _ := newCache(t, 256, 256, 0)

	pageIx, r, ok := c.Lookup(c.White())
	require.True(t, ok)
	assert.Equal(t, 0, pageIx)
	assert.Equal(t, atlas.Rect{X: 0, Y: 0, W: 1, H: 1}, r)

	w, h := c.PageTexture(0).Size()
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestCacheImagePlacement(t *testing.T) {
	c, _ := newCache(t, 256, 256, 0)

	h1, err := c.CacheImage(solidPixels(64, 64), 64, 64)
	require.NoError(t, err)
	page1, r1, ok := c.Lookup(h1)
	require.True(t, ok)
	assert.Equal(t, 1, page1, "first user image goes to the first real page")
	assert.Equal(t, atlas.Rect{X: 0, Y: 0, W: 0.25, H: 0.25}, r1)

	h2, err := c.CacheImage(solidPixels(64, 64), 64, 64)
	require.NoError(t, err)
	page2, r2, ok := c.Lookup(h2)
	require.True(t, ok)
	assert.Equal(t, page1, page2)
	assert.Equal(t, atlas.Rect{X: 0.25, Y: 0, W: 0.25, H: 0.25}, r2)
	assert.False(t, r1.Intersects(r2))
	assert.NotEqual(t, h1, h2)
}

func TestCacheTooSmall(t *testing.T) {
	c, _ := newCache(t, 128, 128, 0)

	_, err := c.CacheImage(solidPixels(129, 10), 129, 10)
	assert.ErrorIs(t, err, ErrCacheTooSmall)
}

func TestNoSpaceAtPageCap(t *testing.T) {
	c, _ := newCache(t, 64, 64, 1)

	// Fill the single allowed page completely.
	h1, err := c.CacheImage(solidPixels(64, 64), 64, 64)
	require.NoError(t, err)

	_, err = c.CacheImage(solidPixels(32, 32), 32, 32)
	assert.ErrorIs(t, err, ErrNoSpace)

	// Prior state is intact.
	page, r, ok := c.Lookup(h1)
	require.True(t, ok)
	assert.Equal(t, 1, page)
	assert.Equal(t, atlas.Rect{X: 0, Y: 0, W: 1, H: 1}, r)
}

func TestUnlimitedPagesAlwaysSucceed(t *testing.T) {
	c, _ := newCache(t, 64, 64, 0)

	// Each image fills a page's width, so new pages keep getting created.
	for i := 0; i < 20; i++ {
		h, err := c.CacheImage(solidPixels(64, 48), 64, 48)
		require.NoError(t, err)
		_, r, ok := c.Lookup(h)
		require.True(t, ok)
		assert.GreaterOrEqual(t, r.X, float32(0))
		assert.GreaterOrEqual(t, r.Y, float32(0))
		assert.LessOrEqual(t, r.X+r.W, float32(1))
		assert.LessOrEqual(t, r.Y+r.H, float32(1))
	}
	assert.Greater(t, c.PageCount(), 2)
}

func TestUploadWritesPageTexture(t *testing.T) {
	c, _ := newCache(t, 8, 8, 0)

	pix := make([]byte, 4*2*2)
	for i := 0; i < 4; i++ {
		pix[4*i+0] = 10
		pix[4*i+1] = 20
		pix[4*i+2] = 30
		pix[4*i+3] = 255
	}
	h, err := c.CacheImage(pix, 2, 2)
	require.NoError(t, err)

	page, r, ok := c.Lookup(h)
	require.True(t, ok)
	tex := c.PageTexture(page).(*headless.Texture)
	px := int(r.X*8 + 0.5)
	py := int(r.Y*8 + 0.5)
	off := 4 * (py*8 + px)
	assert.Equal(t, byte(10), tex.Pix[off+0])
	assert.Equal(t, byte(20), tex.Pix[off+1])
	assert.Equal(t, byte(30), tex.Pix[off+2])
	assert.Equal(t, byte(255), tex.Pix[off+3])
}

func TestLookupUnknownHandle(t *testing.T) {
	c, _ := newCache(t, 64, 64, 0)
	_, _, ok := c.Lookup(Handle(999))
	assert.False(t, ok)
}

func TestSetPageSizeAffectsNewPagesOnly(t *testing.T) {
	c, _ := newCache(t, 64, 64, 0)

	h1, err := c.CacheImage(solidPixels(64, 64), 64, 64)
	require.NoError(t, err)

	c.SetPageSize(128, 128)
	_, err = c.CacheImage(solidPixels(100, 100), 100, 100)
	require.NoError(t, err)

	// First page keeps its size and contents.
	page, _, ok := c.Lookup(h1)
	require.True(t, ok)
	w, _ := c.PageTexture(page).Size()
	assert.Equal(t, 64, w)
}

func TestCacheImageBytesDecodeError(t *testing.T) {
	c, _ := newCache(t, 64, 64, 0)
	_, err := c.CacheImageBytes([]byte("not an image"))
	assert.Error(t, err)
}

func TestCacheFileMissing(t *testing.T) {
	c, _ := newCache(t, 64, 64, 0)
	_, err := c.CacheFile("does/not/exist.png")
	assert.Error(t, err)
}
