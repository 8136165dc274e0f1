// Package headless implements core.GraphicsDevice entirely in memory. It
// backs the package tests, and works anywhere a frame needs to be produced
// without a GPU context (CI, golden tests).
package headless

import (
	"fmt"

	"github.com/kilngfx/kiln/engine/core"
)

// Texture is an in-memory RGBA8 surface.
type Texture struct {
	W, H int
	Pix  []byte // 4*W*H, row-major, top-left origin
}

func (t *Texture) Size() (int, int) { return t.W, t.H }

// Device records every texture, write, and draw command it receives.
type Device struct {
	maxTexSize int
	textures   []*Texture
	draws      []core.DrawCmd
	clearColor [4]float32
	width      int
	height     int
}

// New returns a device that accepts textures up to maxTexSize on a side;
// 0 means 4096.
func New(maxTexSize int) *Device {
	if maxTexSize <= 0 {
		maxTexSize = 4096
	}
	return &Device{maxTexSize: maxTexSize}
}

func (d *Device) CreateTexture(desc core.TextureDesc) (core.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 ||
		desc.Width > d.maxTexSize || desc.Height > d.maxTexSize {
		return nil, core.ErrDimensionsNotSupported
	}
	t := &Texture{W: desc.Width, H: desc.Height, Pix: make([]byte, 4*desc.Width*desc.Height)}
	if desc.Pixels != nil {
		if len(desc.Pixels) != len(t.Pix) {
			return nil, fmt.Errorf("headless: pixel data is %d bytes, want %d", len(desc.Pixels), len(t.Pix))
		}
		copy(t.Pix, desc.Pixels)
	}
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *Device) WriteTexture(tex core.Texture, x, y, w, h int, pix []byte) error {
	t, ok := tex.(*Texture)
	if !ok {
		return fmt.Errorf("headless: foreign texture %T", tex)
	}
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > t.W || y+h > t.H {
		return fmt.Errorf("headless: write rect (%d,%d %dx%d) outside %dx%d texture", x, y, w, h, t.W, t.H)
	}
	if len(pix) != 4*w*h {
		return fmt.Errorf("headless: pixel data is %d bytes, want %d", len(pix), 4*w*h)
	}
	for row := 0; row < h; row++ {
		dst := 4 * ((y+row)*t.W + x)
		src := 4 * row * w
		copy(t.Pix[dst:dst+4*w], pix[src:src+4*w])
	}
	return nil
}

func (d *Device) MaxTextureSize() int { return d.maxTexSize }

func (d *Device) Draw(cmd core.DrawCmd) error {
	// Keep an independent copy; callers reuse their vertex blocks.
	verts := make([]float32, len(cmd.Vertices))
	copy(verts, cmd.Vertices)
	cmd.Vertices = verts
	d.draws = append(d.draws, cmd)
	return nil
}

func (d *Device) Clear(r, g, b, a float32) { d.clearColor = [4]float32{r, g, b, a} }
func (d *Device) Resize(w, h int)          { d.width, d.height = w, h }
func (d *Device) Shutdown()                {}

// Draws returns the draw commands recorded since the last ResetDraws.
func (d *Device) Draws() []core.DrawCmd { return d.draws }

// ResetDraws discards recorded draw commands (typically between frames).
func (d *Device) ResetDraws() { d.draws = d.draws[:0] }

// TextureCount reports how many textures were created.
func (d *Device) TextureCount() int { return len(d.textures) }
