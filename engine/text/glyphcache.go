// Package text rasterizes and caches glyphs into a single atlas surface and
// answers UV, metric and kerning queries for cached fonts.
//
// Fonts are registered by (path, integer-scaled size); caching the same spec
// again reuses the existing handle. Caching is serialized behind one mutex
// and must run on the context thread (the atlas is a device texture).
// Queries read an immutable snapshot published atomically after every
// successful caching call, so render and producer threads never contend
// with CacheGlyphs. Every caching call is all-or-nothing: a failure leaves
// the cache exactly as it was.
package text

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/kilngfx/kiln/engine/core"
	"github.com/kilngfx/kiln/engine/gfx/atlas"
)

// ErrAtlasFull means the glyph atlas cannot hold the requested glyphs; the
// atlas is a single fixed surface and never grows.
var ErrAtlasFull = errors.New("text: glyph atlas is full")

// GlyphNotSupportedError reports codepoints the font does not map to any
// glyph. The whole caching call is aborted; nothing was committed.
type GlyphNotSupportedError struct {
	Runes []rune
}

func (e *GlyphNotSupportedError) Error() string {
	return fmt.Sprintf("text: font does not support %q", string(e.Runes))
}

// FontHandle references a registered (font, size) pair. Handles are
// monotonically increasing, never reused, and scoped to the issuing cache.
type FontHandle uint32

// Metrics describes one cached glyph in pixels.
type Metrics struct {
	Advance  float32 // pen advance after the glyph
	BearingX float32 // left-side bearing
	BearingY float32 // baseline to glyph top
	W, H     int     // bitmap size; 0x0 for zero-width glyphs such as space
	GlyphID  uint16  // font glyph index
}

// DefaultAtlasSize is the glyph atlas dimension used when New gets zero.
const DefaultAtlasSize = 1024

// pad keeps one blank pixel around every packed glyph so linear sampling
// does not bleed neighbors.
const pad = 1

type fontSpec struct {
	path string
	size int // scale * 100, rounded; keeps the map key integral
}

type glyphKey struct {
	font FontHandle
	r    rune
}

type kernKey struct {
	font       FontHandle
	prev, next rune
}

type glyphData struct {
	rect    atlas.Rect
	hasRect bool
	metrics Metrics
}

type fontEntry struct {
	sfnt    *sfnt.Font
	face    font.Face
	scale   float32
	ascent  float32
	descent float32 // negative: distance below baseline
	lineGap float32
	runes   map[rune]bool // resident codepoints
}

// snapshot is the immutable query view.
type snapshot struct {
	glyphs   map[glyphKey]glyphData
	kern     map[kernKey]float32
	fonts    []fontMetricsView
	tex      core.Texture
}

type fontMetricsView struct {
	ascent, descent, lineGap float32
}

// Cache owns the font registry and the glyph atlas.
type Cache struct {
	mu     sync.Mutex
	dev    core.GraphicsDevice
	logger *slog.Logger

	atlasW, atlasH int
	tex            core.Texture
	img            *image.RGBA // CPU copy of the atlas, append-only
	tree           *atlas.Tree

	specs map[fontSpec]FontHandle
	fonts []*fontEntry // indexed by FontHandle

	view atomic.Pointer[snapshot]
}

// New creates a glyph cache with an atlasW×atlasH atlas texture (0 means
// DefaultAtlasSize). Must be called on the context thread.
func New(dev core.GraphicsDevice, logger *slog.Logger, atlasW, atlasH int) (*Cache, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if atlasW <= 0 {
		atlasW = DefaultAtlasSize
	}
	if atlasH <= 0 {
		atlasH = DefaultAtlasSize
	}

	tex, err := dev.CreateTexture(core.TextureDesc{Width: atlasW, Height: atlasH})
	if err != nil {
		return nil, fmt.Errorf("create glyph atlas: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, atlasW, atlasH))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{}}, image.Point{}, draw.Src)

	c := &Cache{
		dev:    dev,
		logger: logger,
		atlasW: atlasW,
		atlasH: atlasH,
		tex:    tex,
		img:    img,
		tree:   atlas.New(),
		specs:  make(map[fontSpec]FontHandle),
	}
	c.view.Store(&snapshot{
		glyphs: map[glyphKey]glyphData{},
		kern:   map[kernKey]float32{},
		tex:    tex,
	})
	return c, nil
}

// CacheGlyphs ensures every rune in charset is resident for the font at
// path rendered at scale (pt). Duplicate runes are ignored; repeated calls
// with the same (path, scale) reuse one handle, and calls that add no new
// runes are no-ops. If any requested rune is not mapped by the font, the
// whole call fails with *GlyphNotSupportedError and nothing is committed.
func (c *Cache) CacheGlyphs(path string, scale float32, charset []rune) (FontHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	spec := fontSpec{path: path, size: int(scale*100 + 0.5)}
	handle, entry, fresh, err := c.resolveFontLocked(spec, scale, func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font %q: %w", path, err)
		}
		return data, nil
	})
	if err != nil {
		return 0, err
	}
	return c.cacheLocked(spec, handle, entry, fresh, charset)
}

// CacheGlyphsFromBytes is CacheGlyphs for an in-memory font. name stands in
// for the path in the registry key.
func (c *Cache) CacheGlyphsFromBytes(name string, data []byte, scale float32, charset []rune) (FontHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	spec := fontSpec{path: name, size: int(scale*100 + 0.5)}
	handle, entry, fresh, err := c.resolveFontLocked(spec, scale, func() ([]byte, error) { return data, nil })
	if err != nil {
		return 0, err
	}
	return c.cacheLocked(spec, handle, entry, fresh, charset)
}

// resolveFontLocked finds or stages the font entry for spec. A staged entry
// (fresh == true) is not registered until the caching call commits.
func (c *Cache) resolveFontLocked(spec fontSpec, scale float32, load func() ([]byte, error)) (FontHandle, *fontEntry, bool, error) {
	if h, ok := c.specs[spec]; ok {
		return h, c.fonts[h], false, nil
	}

	data, err := load()
	if err != nil {
		return 0, nil, false, err
	}
	ft, err := opentype.Parse(data)
	if err != nil {
		return 0, nil, false, fmt.Errorf("parse font %q: %w", spec.path, err)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size: float64(scale), DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return 0, nil, false, fmt.Errorf("create face %q: %w", spec.path, err)
	}

	m := face.Metrics()
	ascent := float32(m.Ascent.Round())
	descent := float32(-m.Descent.Round())
	entry := &fontEntry{
		sfnt:    ft,
		face:    face,
		scale:   scale,
		ascent:  ascent,
		descent: descent,
		lineGap: float32(m.Height.Round()) - ascent + descent,
		runes:   make(map[rune]bool),
	}
	return FontHandle(len(c.fonts)), entry, true, nil
}

type stagedGlyph struct {
	r       rune
	w, h    int
	met     Metrics
	rect    atlas.Rect // inner rect, set during packing
	hasRect bool
}

// cacheLocked validates, rasterizes and commits the new glyphs for handle.
// Nothing is committed until every step has succeeded.
func (c *Cache) cacheLocked(spec fontSpec, handle FontHandle, entry *fontEntry, fresh bool, charset []rune) (FontHandle, error) {
	// Dedup the request and drop already-resident runes.
	var needed []rune
	seen := make(map[rune]bool, len(charset))
	for _, r := range charset {
		if seen[r] || entry.runes[r] {
			continue
		}
		seen[r] = true
		needed = append(needed, r)
	}
	if len(needed) == 0 && !fresh {
		return handle, nil
	}

	// Reject the whole call if any rune is unmapped (glyph index 0 is
	// .notdef).
	var buf sfnt.Buffer
	var unmapped []rune
	staged := make([]stagedGlyph, 0, len(needed))
	for _, r := range needed {
		gi, err := entry.sfnt.GlyphIndex(&buf, r)
		if err != nil {
			return 0, fmt.Errorf("glyph index for %q: %w", r, err)
		}
		if gi == 0 {
			unmapped = append(unmapped, r)
			continue
		}

		bounds, adv, ok := entry.face.GlyphBounds(r)
		if !ok {
			unmapped = append(unmapped, r)
			continue
		}
		w := (bounds.Max.X - bounds.Min.X).Round()
		h := (bounds.Max.Y - bounds.Min.Y).Round()
		staged = append(staged, stagedGlyph{
			r: r, w: w, h: h,
			met: Metrics{
				Advance:  float32(adv.Round()),
				BearingX: float32(bounds.Min.X.Round()),
				BearingY: float32(-bounds.Min.Y.Round()),
				W:        w, H: h,
				GlyphID: uint16(gi),
			},
		})
	}
	if len(unmapped) > 0 {
		return 0, &GlyphNotSupportedError{Runes: unmapped}
	}

	// Pack against a clone so a full atlas aborts without mutating state.
	tree := c.tree.Clone()
	for i := range staged {
		g := &staged[i]
		if g.w == 0 || g.h == 0 {
			continue // zero-width; no atlas space
		}
		nw := float32(g.w+2*pad) / float32(c.atlasW)
		nh := float32(g.h+2*pad) / float32(c.atlasH)
		id := uint64(handle)<<32 | uint64(g.r)
		r, err := tree.Allocate(nw, nh, id)
		if err != nil {
			return 0, fmt.Errorf("%w: %d glyphs requested", ErrAtlasFull, len(staged))
		}
		px := int(r.X*float32(c.atlasW) + 0.5)
		py := int(r.Y*float32(c.atlasH) + 0.5)
		g.rect = atlas.Rect{
			X: float32(px+pad) / float32(c.atlasW),
			Y: float32(py+pad) / float32(c.atlasH),
			W: float32(g.w) / float32(c.atlasW),
			H: float32(g.h) / float32(c.atlasH),
		}
		g.hasRect = true
	}

	// Rasterize white glyphs with alpha coverage into the CPU atlas, then
	// upload every touched region in one batch.
	drawer := &font.Drawer{Dst: c.img, Src: image.White, Face: entry.face}
	for _, g := range staged {
		if !g.hasRect {
			continue
		}
		px := int(g.rect.X*float32(c.atlasW) + 0.5)
		py := int(g.rect.Y*float32(c.atlasH) + 0.5)
		baseline := py + int(g.met.BearingY)
		drawer.Dot = fixed.P(px-int(g.met.BearingX), baseline)
		drawer.DrawString(string(g.r))
	}
	for _, g := range staged {
		if !g.hasRect {
			continue
		}
		px := int(g.rect.X*float32(c.atlasW)+0.5) - pad
		py := int(g.rect.Y*float32(c.atlasH)+0.5) - pad
		w := g.w + 2*pad
		h := g.h + 2*pad
		if err := c.dev.WriteTexture(c.tex, px, py, w, h, c.copyRegion(px, py, w, h)); err != nil {
			return 0, fmt.Errorf("upload glyph %q: %w", g.r, err)
		}
	}

	// Commit: registry, residency, tree, snapshot.
	if fresh {
		c.fonts = append(c.fonts, entry)
		c.specs[spec] = handle
	}
	c.tree = tree
	for _, g := range staged {
		entry.runes[g.r] = true
	}

	c.publishLocked(handle, entry, staged)
	c.logger.Info("cached glyphs",
		slog.Int("font", int(handle)), slog.Int("new", len(staged)),
		slog.Int("resident", len(entry.runes)))
	return handle, nil
}

// copyRegion extracts a tightly packed RGBA block from the CPU atlas.
func (c *Cache) copyRegion(x, y, w, h int) []byte {
	out := make([]byte, 4*w*h)
	for row := 0; row < h; row++ {
		src := c.img.PixOffset(x, y+row)
		copy(out[4*row*w:4*(row+1)*w], c.img.Pix[src:src+4*w])
	}
	return out
}

// publishLocked builds and stores the next query snapshot.
func (c *Cache) publishLocked(handle FontHandle, entry *fontEntry, staged []stagedGlyph) {
	old := c.view.Load()

	glyphs := make(map[glyphKey]glyphData, len(old.glyphs)+len(staged))
	for k, v := range old.glyphs {
		glyphs[k] = v
	}
	for _, g := range staged {
		glyphs[glyphKey{handle, g.r}] = glyphData{rect: g.rect, hasRect: g.hasRect, metrics: g.met}
	}

	// Kerning is precomputed pairwise over the handle's resident runes so
	// per-frame lookups stay lock-free. Only nonzero pairs are stored.
	kern := make(map[kernKey]float32, len(old.kern))
	for k, v := range old.kern {
		if k.font != handle {
			kern[k] = v
		}
	}
	resident := make([]rune, 0, len(entry.runes))
	for r := range entry.runes {
		resident = append(resident, r)
	}
	for _, a := range resident {
		for _, b := range resident {
			if dx := entry.face.Kern(a, b); dx != 0 {
				kern[kernKey{handle, a, b}] = float32(dx.Round())
			}
		}
	}

	fonts := make([]fontMetricsView, len(c.fonts))
	for i, f := range c.fonts {
		fonts[i] = fontMetricsView{ascent: f.ascent, descent: f.descent, lineGap: f.lineGap}
	}

	c.view.Store(&snapshot{glyphs: glyphs, kern: kern, fonts: fonts, tex: c.tex})
}

// GlyphRect returns the normalized atlas rect for a cached glyph. ok is
// false if the glyph was never cached or is zero-width. Safe from any
// goroutine.
func (c *Cache) GlyphRect(h FontHandle, r rune) (atlas.Rect, bool) {
	g, ok := c.view.Load().glyphs[glyphKey{h, r}]
	if !ok || !g.hasRect {
		return atlas.Rect{}, false
	}
	return g.rect, true
}

// Metrics returns the metrics for a cached glyph. Safe from any goroutine.
func (c *Cache) Metrics(h FontHandle, r rune) (Metrics, bool) {
	g, ok := c.view.Load().glyphs[glyphKey{h, r}]
	if !ok {
		return Metrics{}, false
	}
	return g.metrics, true
}

// Kern returns the kerning adjustment in pixels between two consecutive
// cached runes. Safe from any goroutine.
func (c *Cache) Kern(h FontHandle, prev, next rune) float32 {
	return c.view.Load().kern[kernKey{h, prev, next}]
}

// LineMetrics returns the ascent, descent (negative, below the baseline)
// and line gap for a cached font handle. Safe from any goroutine.
func (c *Cache) LineMetrics(h FontHandle) (ascent, descent, lineGap float32, ok bool) {
	s := c.view.Load()
	if int(h) >= len(s.fonts) {
		return 0, 0, 0, false
	}
	f := s.fonts[h]
	return f.ascent, f.descent, f.lineGap, true
}

// AtlasTexture returns the device texture holding the glyph atlas. Safe
// from any goroutine.
func (c *Cache) AtlasTexture() core.Texture {
	return c.view.Load().tex
}

// GlyphCount reports how many glyphs are resident for h.
func (c *Cache) GlyphCount(h FontHandle) int {
	n := 0
	for k := range c.view.Load().glyphs {
		if k.font == h {
			n++
		}
	}
	return n
}
