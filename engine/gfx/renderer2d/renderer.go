// Package renderer2d draws 2D shapes, cached textures and text through a
// GraphicsDevice. Producer goroutines record geometry through Controllers;
// the render thread drains the shared channel, merges units into per-texture
// batches and issues one draw call per batch.
package renderer2d

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/kilngfx/kiln/engine/core"
	"github.com/kilngfx/kiln/engine/gfx/texcache"
	"github.com/kilngfx/kiln/engine/gmath"
	"github.com/kilngfx/kiln/engine/text"
)

// DefaultMaxBatchVertices bounds the vertex count uploaded per draw call.
const DefaultMaxBatchVertices = 65536

// Stats holds counters from the most recent Render call.
type Stats struct {
	Units     int // geometry units received since the previous Render
	Batches   int // draw calls issued
	Vertices  int // vertices drawn after truncation
	Truncated int // vertices dropped to honor the batch budget
}

// Renderer owns the frame pipeline: channel, batcher, both caches and the
// device. RecvData and Render must run on the thread owning the graphics
// context; controllers may feed the channel from anywhere.
type Renderer struct {
	dev    core.GraphicsDevice
	logger *slog.Logger

	ch       *Channel
	batcher  *Batcher
	textures *texcache.Cache
	glyphs   *text.Cache

	proj     [16]float32
	maxVerts int
	units    int
	stats    Stats

	scratch []float32 // reusable interleave buffer
}

// New builds a renderer and its caches on dev. cfg supplies the cache page
// geometry and the per-batch vertex budget; zero values pick defaults.
func New(dev core.GraphicsDevice, logger *slog.Logger, cfg core.Config) (*Renderer, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	textures, err := texcache.New(dev, logger, cfg.CachePageW, cfg.CachePageH, cfg.MaxCachePages)
	if err != nil {
		return nil, fmt.Errorf("renderer2d: texture cache: %w", err)
	}
	glyphs, err := text.New(dev, logger, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("renderer2d: glyph cache: %w", err)
	}
	maxVerts := cfg.MaxBatchVertices
	if maxVerts <= 0 {
		maxVerts = DefaultMaxBatchVertices
	}
	r := &Renderer{
		dev:      dev,
		logger:   logger,
		ch:       NewChannel(),
		batcher:  NewBatcher(),
		textures: textures,
		glyphs:   glyphs,
		maxVerts: maxVerts,
	}
	w := cfg.Width
	h := cfg.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	r.Resize(w, h)
	return r, nil
}

// Textures exposes the texture cache for loading images.
func (r *Renderer) Textures() *texcache.Cache { return r.textures }

// Glyphs exposes the glyph cache for loading fonts.
func (r *Renderer) Glyphs() *text.Cache { return r.glyphs }

// NewController returns a fresh controller feeding this renderer.
func (r *Renderer) NewController() *Controller {
	page, _, _ := r.textures.Lookup(r.textures.White())
	return &Controller{
		ch:        r.ch,
		textures:  r.textures,
		glyphs:    r.glyphs,
		logger:    r.logger,
		whitePage: page,
	}
}

// Resize updates the projection to map pixel coordinates (origin top-left)
// onto the framebuffer.
func (r *Renderer) Resize(w, h int) {
	r.proj = gmath.Ortho(w, h)
}

// Stats returns counters from the latest Render.
func (r *Renderer) Stats() Stats { return r.stats }

// RecvData drains all geometry units queued since the last call and merges
// them into the frame's batches. Call once per frame, before Render.
func (r *Renderer) RecvData() {
	for _, unit := range r.ch.Drain() {
		r.batcher.AddUnit(unit)
		r.units++
	}
}

// Render issues one draw call per batch in first-encounter order, then
// resets the batcher for the next frame. Batches over the vertex budget are
// truncated at a triangle boundary.
func (r *Renderer) Render() error {
	stats := Stats{Units: r.units}
	r.units = 0

	for _, b := range r.batcher.Batches() {
		verts := b.Verts
		if len(verts) > r.maxVerts {
			keep := r.maxVerts - r.maxVerts%3
			stats.Truncated += len(verts) - keep
			r.logger.Warn("batch over vertex budget, truncating",
				slog.Int("have", len(verts)), slog.Int("keep", keep))
			verts = verts[:keep]
		}
		if len(verts) == 0 {
			continue
		}

		tex, isFont := r.resolve(b.Key)
		if tex == nil {
			r.logger.Warn("batch references missing texture",
				slog.Int("kind", int(b.Key.Kind)), slog.Int("index", int(b.Key.Index)))
			continue
		}

		buf := r.interleave(verts)
		err := r.dev.Draw(core.DrawCmd{
			Vertices:    buf,
			VertexCount: len(verts),
			Texture:     tex,
			IsFont:      isFont,
			Proj:        r.proj,
		})
		if err != nil {
			r.batcher.Reset()
			return fmt.Errorf("renderer2d: draw: %w", err)
		}
		stats.Batches++
		stats.Vertices += len(verts)
	}

	r.batcher.Reset()
	r.stats = stats
	return nil
}

func (r *Renderer) resolve(k BatchKey) (core.Texture, bool) {
	switch k.Kind {
	case KindFont:
		return r.glyphs.AtlasTexture(), true
	default:
		return r.textures.PageTexture(int(k.Index)), false
	}
}

func (r *Renderer) interleave(verts []Vertex) []float32 {
	need := len(verts) * core.VertexFloats
	if cap(r.scratch) < need {
		r.scratch = make([]float32, 0, need)
	}
	buf := r.scratch[:0]
	for i := range verts {
		v := &verts[i]
		buf = append(buf,
			v.Pos.X, v.Pos.Y,
			v.UV.X, v.UV.Y,
			v.Color[0], v.Color[1], v.Color[2], v.Color[3])
	}
	r.scratch = buf
	return buf
}
