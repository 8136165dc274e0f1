package renderer2d

import (
	"log/slog"

	"github.com/chewxy/math32"

	"github.com/kilngfx/kiln/engine/colors"
	"github.com/kilngfx/kiln/engine/gfx/atlas"
	"github.com/kilngfx/kiln/engine/gfx/texcache"
	"github.com/kilngfx/kiln/engine/gmath"
	"github.com/kilngfx/kiln/engine/text"
)

// fallbackRune stands in for runes that were never cached for a font.
const fallbackRune = '?'

// Controller synthesizes triangle geometry for drawing primitives and hands
// it to the renderer. Every producer goroutine holds its own Controller
// (obtain more with Clone); a single Controller is not safe for concurrent
// use, but any number of controllers may run in parallel.
//
// Geometry accumulates in a local buffer until Flush, which sends it to the
// renderer as one unit; the unit is drawn whole in a single frame.
type Controller struct {
	ch       *Channel
	textures *texcache.Cache
	glyphs   *text.Cache
	logger   *slog.Logger

	whitePage int
	buf       []Vertex
}

// Clone returns a controller sharing the channel and caches, with its own
// empty buffer. Safe to hand to another goroutine.
func (c *Controller) Clone() *Controller {
	return &Controller{
		ch:        c.ch,
		textures:  c.textures,
		glyphs:    c.glyphs,
		logger:    c.logger,
		whitePage: c.whitePage,
	}
}

// Flush sends the buffered geometry to the renderer as one unit. A no-op on
// an empty buffer.
func (c *Controller) Flush() {
	if len(c.buf) == 0 {
		return
	}
	c.ch.Send(c.buf)
	c.buf = nil
}

// Buffered reports how many vertices are waiting for the next Flush.
func (c *Controller) Buffered() int { return len(c.buf) }

// solid emits one vertex bound to the white texture page (uv at the texel
// center).
func (c *Controller) solid(p gmath.Vec2, col colors.Color) {
	c.buf = append(c.buf, Vertex{
		Pos: p, UV: gmath.V2(0.5, 0.5), Color: col,
		Kind: KindTexture, Index: int32(c.whitePage),
	})
}

// Line draws a solid line of the given width between p1 and p2 as two
// triangles.
func (c *Controller) Line(p1, p2 gmath.Vec2, width float32, col colors.Color) {
	dir := p2.Sub(p1).Nor()
	perp := dir.Perp().Mul(width / 2)

	a := p1.Add(perp)
	b := p1.Sub(perp)
	d := p2.Add(perp)
	e := p2.Sub(perp)

	c.solid(a, col)
	c.solid(b, col)
	c.solid(d, col)

	c.solid(d, col)
	c.solid(e, col)
	c.solid(b, col)
}

// Rect draws a solid axis-aligned rectangle with top-left corner (x, y).
func (c *Controller) Rect(x, y, w, h float32, col colors.Color) {
	c.solid(gmath.V2(x, y), col)
	c.solid(gmath.V2(x+w, y), col)
	c.solid(gmath.V2(x+w, y+h), col)

	c.solid(gmath.V2(x, y), col)
	c.solid(gmath.V2(x, y+h), col)
	c.solid(gmath.V2(x+w, y+h), col)
}

// Circle draws a solid circle as segments wedges around pos. More segments,
// smoother circle.
func (c *Controller) Circle(pos gmath.Vec2, radius float32, segments int, col colors.Color) {
	if segments < 3 {
		segments = 3
	}
	step := 2 * math32.Pi / float32(segments)
	angle := float32(0)
	for i := 0; i < segments; i++ {
		c.solid(pos, col)
		c.solid(gmath.V2(
			pos.X+radius*math32.Cos(angle),
			pos.Y+radius*math32.Sin(angle)), col)
		c.solid(gmath.V2(
			pos.X+radius*math32.Cos(angle+step),
			pos.Y+radius*math32.Sin(angle+step)), col)
		angle += step
	}
}

// TexturedQuad draws the cached image h into the box with top-left (x, y),
// modulated by tint. An unknown handle draws nothing (logged at Warn).
func (c *Controller) TexturedQuad(h texcache.Handle, x, y, w, hgt float32, tint colors.Color) {
	page, uv, ok := c.textures.Lookup(h)
	if !ok {
		c.logger.Warn("textured quad with unknown handle", slog.Int("handle", int(h)))
		return
	}
	c.quad(x, y, w, hgt, uv, tint, KindTexture, int32(page))
}

// quad emits two triangles covering (x, y, w, h) with the given UV rect.
func (c *Controller) quad(x, y, w, h float32, uv atlas.Rect, col colors.Color, kind ResourceKind, index int32) {
	v := func(px, py, u, vv float32) Vertex {
		return Vertex{Pos: gmath.V2(px, py), UV: gmath.V2(u, vv), Color: col, Kind: kind, Index: index}
	}
	u0, v0 := uv.X, uv.Y
	u1, v1 := uv.X+uv.W, uv.Y+uv.H

	c.buf = append(c.buf,
		v(x, y, u0, v0),
		v(x+w, y, u1, v0),
		v(x+w, y+h, u1, v1),

		v(x, y, u0, v0),
		v(x, y+h, u0, v1),
		v(x+w, y+h, u1, v1),
	)
}

// Text draws s with top-left origin pos using a cached font and returns the
// run's bounding box. Runes never cached for the font fall back to '?';
// newlines start a new line. Kerning is applied between consecutive runes.
func (c *Controller) Text(s string, pos gmath.Vec2, font text.FontHandle, tint colors.Color) (w, h float32) {
	ascent, descent, lineGap, ok := c.glyphs.LineMetrics(font)
	if !ok {
		c.logger.Warn("text with unknown font handle", slog.Int("font", int(font)))
		return 0, 0
	}
	lineH := ascent - descent + lineGap

	penX := pos.X
	baseY := pos.Y + ascent
	maxX := pos.X
	lines := 1
	prev := rune(-1)

	for _, r := range s {
		if r == '\n' {
			penX = pos.X
			baseY += lineH
			lines++
			prev = -1
			continue
		}

		m, ok := c.glyphs.Metrics(font, r)
		if !ok {
			r = fallbackRune
			if m, ok = c.glyphs.Metrics(font, r); !ok {
				c.logger.Warn("rune and fallback both uncached",
					slog.Int("font", int(font)), slog.String("rune", string(r)))
				continue
			}
		}

		if prev >= 0 {
			penX += c.glyphs.Kern(font, prev, r)
		}

		if uv, visible := c.glyphs.GlyphRect(font, r); visible {
			left := penX + m.BearingX
			top := baseY - m.BearingY
			c.quad(left, top, float32(m.W), float32(m.H), uv, tint, KindFont, 0)
		}

		penX += m.BearingX + m.Advance
		if penX > maxX {
			maxX = penX
		}
		prev = r
	}

	return maxX - pos.X, float32(lines) * lineH
}
