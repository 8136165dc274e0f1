package renderer2d

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/kilngfx/kiln/engine/colors"
	"github.com/kilngfx/kiln/engine/core"
	"github.com/kilngfx/kiln/engine/gfx/headless"
	"github.com/kilngfx/kiln/engine/gmath"
	"github.com/kilngfx/kiln/engine/text"
)

func newRenderer(t *testing.T, cfg core.Config) (*Renderer, *headless.Device) {
	t.Helper()
	dev := headless.New(0)
	if cfg.Width == 0 {
		cfg.Width = 800
	}
	if cfg.Height == 0 {
		cfg.Height = 600
	}
	r, err := New(dev, nil, cfg)
	require.NoError(t, err)
	return r, dev
}

func vtx(kind ResourceKind, index int32) Vertex {
	return Vertex{Kind: kind, Index: index, Color: colors.White}
}

func TestChannelKeepsUnitsWholeAndOrdered(t *testing.T) {
	ch := NewChannel()

	ch.Send([]Vertex{vtx(KindTexture, 0)})
	ch.Send(nil) // ignored
	ch.Send([]Vertex{vtx(KindTexture, 1), vtx(KindTexture, 1)})

	units := ch.Drain()
	require.Len(t, units, 2)
	assert.Len(t, units[0], 1)
	assert.Len(t, units[1], 2)
	assert.Equal(t, int32(1), units[1][0].Index)

	// Drained units are gone; new sends queue for the next drain.
	assert.Equal(t, 0, ch.Len())
	ch.Send([]Vertex{vtx(KindFont, 0)})
	units = ch.Drain()
	require.Len(t, units, 1)
	assert.Equal(t, KindFont, units[0][0].Kind)
}

func TestChannelConcurrentSendsAllArrive(t *testing.T) {
	ch := NewChannel()

	const producers = 8
	const perProducer = 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				ch.Send([]Vertex{vtx(KindTexture, int32(p))})
			}
		}(p)
	}
	wg.Wait()

	assert.Len(t, ch.Drain(), producers*perProducer)
}

func TestBatcherGroupsByResourceInFirstSeenOrder(t *testing.T) {
	b := NewBatcher()
	a := BatchKey{Kind: KindTexture, Index: 1}
	f := BatchKey{Kind: KindFont, Index: 0}

	// Interleaved A, A, F, A, F collapses to two batches, A first.
	b.AddUnit([]Vertex{vtx(a.Kind, a.Index), vtx(a.Kind, a.Index)})
	b.AddUnit([]Vertex{vtx(f.Kind, f.Index), vtx(a.Kind, a.Index), vtx(f.Kind, f.Index)})

	batches := b.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, a, batches[0].Key)
	assert.Len(t, batches[0].Verts, 3)
	assert.Equal(t, f, batches[1].Key)
	assert.Len(t, batches[1].Verts, 2)

	b.Reset()
	assert.Empty(t, b.Batches())
}

func TestBatcherSameKindDifferentPageSplits(t *testing.T) {
	b := NewBatcher()
	b.AddUnit([]Vertex{vtx(KindTexture, 1), vtx(KindTexture, 2)})
	require.Len(t, b.Batches(), 2)
}

func TestControllerRectProducesWhiteQuad(t *testing.T) {
	r, dev := newRenderer(t, core.Config{})
	c := r.NewController()

	c.Rect(10, 20, 30, 40, colors.Red)
	assert.Equal(t, 6, c.Buffered())
	c.Flush()
	assert.Equal(t, 0, c.Buffered())

	r.RecvData()
	require.NoError(t, r.Render())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, 6, draws[0].VertexCount)
	assert.False(t, draws[0].IsFont)

	// Solid geometry binds the 1x1 white page.
	w, h := draws[0].Texture.Size()
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)

	// First vertex: pos (10,20), uv (0.5,0.5), red.
	v := draws[0].Vertices[:core.VertexFloats]
	assert.Equal(t, []float32{10, 20, 0.5, 0.5, 1, 0, 0, 1}, v)
}

func TestControllerCircleVertexCount(t *testing.T) {
	r, _ := newRenderer(t, core.Config{})
	c := r.NewController()

	c.Circle(gmath.V2(50, 50), 10, 16, colors.Blue)
	assert.Equal(t, 16*3, c.Buffered())

	c = r.NewController()
	c.Circle(gmath.V2(0, 0), 5, 1, colors.Blue) // clamped to 3 segments
	assert.Equal(t, 3*3, c.Buffered())
}

func TestControllerLineVertexCount(t *testing.T) {
	r, _ := newRenderer(t, core.Config{})
	c := r.NewController()
	c.Line(gmath.V2(0, 0), gmath.V2(100, 0), 4, colors.Green)
	assert.Equal(t, 6, c.Buffered())
}

func TestControllerTexturedQuadUnknownHandleDrawsNothing(t *testing.T) {
	r, _ := newRenderer(t, core.Config{})
	c := r.NewController()
	c.TexturedQuad(999, 0, 0, 10, 10, colors.White)
	assert.Equal(t, 0, c.Buffered())
}

func TestControllerTexturedQuadUsesCachedRect(t *testing.T) {
	r, dev := newRenderer(t, core.Config{CachePageW: 256, CachePageH: 256})
	pix := make([]byte, 4*64*64)
	h, err := r.Textures().CacheImage(pix, 64, 64)
	require.NoError(t, err)

	c := r.NewController()
	c.TexturedQuad(h, 0, 0, 64, 64, colors.White)
	c.Flush()
	r.RecvData()
	require.NoError(t, r.Render())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.False(t, draws[0].IsFont)
	// UVs of the first vertex are the rect's top-left corner.
	assert.Equal(t, float32(0), draws[0].Vertices[2])
	assert.Equal(t, float32(0), draws[0].Vertices[3])
	// And the last vertex reaches the rect's far corner (64/256).
	last := draws[0].Vertices[5*core.VertexFloats:]
	assert.InDelta(t, 0.25, last[2], 1e-6)
	assert.InDelta(t, 0.25, last[3], 1e-6)
}

func TestControllerTextRendersGlyphQuads(t *testing.T) {
	r, dev := newRenderer(t, core.Config{})
	font, err := r.Glyphs().CacheGlyphsFromBytes("goregular", goregular.TTF, 16, text.ASCII())
	require.NoError(t, err)

	c := r.NewController()
	w, h := c.Text("Hi", gmath.V2(5, 5), font, colors.White)
	assert.Greater(t, w, float32(0))
	assert.Greater(t, h, float32(0))
	// Two visible glyphs, two triangles each.
	assert.Equal(t, 12, c.Buffered())

	c.Flush()
	r.RecvData()
	require.NoError(t, r.Render())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.True(t, draws[0].IsFont)
}

func TestControllerTextSpacesAdvanceWithoutGeometry(t *testing.T) {
	r, _ := newRenderer(t, core.Config{})
	font, err := r.Glyphs().CacheGlyphsFromBytes("goregular", goregular.TTF, 16, text.ASCII())
	require.NoError(t, err)

	c := r.NewController()
	w, _ := c.Text("   ", gmath.V2(0, 0), font, colors.White)
	assert.Equal(t, 0, c.Buffered())
	assert.Greater(t, w, float32(0))
}

func TestControllerTextUncachedRuneFallsBack(t *testing.T) {
	r, _ := newRenderer(t, core.Config{})
	font, err := r.Glyphs().CacheGlyphsFromBytes("goregular", goregular.TTF, 16, text.ASCII())
	require.NoError(t, err)

	c := r.NewController()
	c.Text("é", gmath.V2(0, 0), font, colors.White) // not in ASCII, draws '?'
	assert.Equal(t, 6, c.Buffered())
}

func TestControllerTextNewlineAddsLine(t *testing.T) {
	r, _ := newRenderer(t, core.Config{})
	font, err := r.Glyphs().CacheGlyphsFromBytes("goregular", goregular.TTF, 16, text.ASCII())
	require.NoError(t, err)

	c := r.NewController()
	_, oneLine := c.Text("a", gmath.V2(0, 0), font, colors.White)
	_, twoLines := c.Text("a\na", gmath.V2(0, 0), font, colors.White)
	assert.InDelta(t, 2*oneLine, twoLines, 1e-4)
}

func TestControllerTextUnknownFontIsNoop(t *testing.T) {
	r, _ := newRenderer(t, core.Config{})
	c := r.NewController()
	w, h := c.Text("hi", gmath.V2(0, 0), text.FontHandle(42), colors.White)
	assert.Zero(t, w)
	assert.Zero(t, h)
	assert.Equal(t, 0, c.Buffered())
}

func TestRendererBatchesAcrossControllers(t *testing.T) {
	r, dev := newRenderer(t, core.Config{})
	c1 := r.NewController()
	c2 := c1.Clone()

	c1.Rect(0, 0, 1, 1, colors.White)
	c2.Rect(2, 2, 1, 1, colors.White)
	c1.Flush()
	c2.Flush()

	r.RecvData()
	require.NoError(t, r.Render())

	// Both units bind the white page, so they merge into one draw.
	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, 12, draws[0].VertexCount)
	assert.Equal(t, Stats{Units: 2, Batches: 1, Vertices: 12}, r.Stats())
}

func TestRendererTruncatesOversizedBatch(t *testing.T) {
	r, dev := newRenderer(t, core.Config{MaxBatchVertices: 10})
	c := r.NewController()

	// Three rects: 18 vertices against a budget of 10.
	for i := 0; i < 3; i++ {
		c.Rect(float32(i), 0, 1, 1, colors.White)
	}
	c.Flush()

	r.RecvData()
	require.NoError(t, r.Render())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	// Truncated down to a triangle boundary: 9 vertices.
	assert.Equal(t, 9, draws[0].VertexCount)
	assert.Equal(t, 9, r.Stats().Vertices)
	assert.Equal(t, 9, r.Stats().Truncated)
}

func TestRendererFrameResetsBatches(t *testing.T) {
	r, dev := newRenderer(t, core.Config{})
	c := r.NewController()

	c.Rect(0, 0, 1, 1, colors.White)
	c.Flush()
	r.RecvData()
	require.NoError(t, r.Render())
	require.Len(t, dev.Draws(), 1)

	// Nothing queued: the next frame draws nothing.
	dev.ResetDraws()
	r.RecvData()
	require.NoError(t, r.Render())
	assert.Empty(t, dev.Draws())
}

func TestRendererUnflushedGeometryStaysLocal(t *testing.T) {
	r, dev := newRenderer(t, core.Config{})
	c := r.NewController()

	c.Rect(0, 0, 1, 1, colors.White)
	// No Flush: the renderer must not see the rect.
	r.RecvData()
	require.NoError(t, r.Render())
	assert.Empty(t, dev.Draws())
	assert.Equal(t, 6, c.Buffered())
}
