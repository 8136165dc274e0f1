package core

import "errors"

// ErrDimensionsNotSupported is returned by CreateTexture when the backend
// rejects the requested texture size.
var ErrDimensionsNotSupported = errors.New("core: texture dimensions not supported by device")

// Texture is an opaque handle to a 2D RGBA8 texture owned by a GraphicsDevice.
type Texture interface {
	Size() (w, h int)
}

// TextureDesc describes a texture to create. Pixels is tightly packed RGBA8
// (4*Width*Height bytes); nil means the texture starts zeroed (transparent).
type TextureDesc struct {
	Width, Height int
	Pixels        []byte
	MagNearest    bool
}

// DrawCmd is one non-indexed triangle-list draw: an interleaved vertex block
// (pos2, uv2, rgba4 per vertex), the texture to bind, and whether the shader
// should sample it as font coverage rather than full color. Alpha blending
// is always enabled.
type DrawCmd struct {
	Vertices    []float32
	VertexCount int
	Texture     Texture
	IsFont      bool
	Proj        [16]float32
}

// GraphicsDevice abstracts the GPU backend (see gfx/gl for the OpenGL
// implementation and gfx/headless for the in-memory one used in tests).
// All methods must be called from the thread owning the graphics context.
type GraphicsDevice interface {
	CreateTexture(desc TextureDesc) (Texture, error)
	// WriteTexture updates the sub-rectangle (x, y, w, h) of t with tightly
	// packed RGBA8 pixels.
	WriteTexture(t Texture, x, y, w, h int, pix []byte) error
	MaxTextureSize() int
	Draw(cmd DrawCmd) error
	Clear(r, g, b, a float32)
	Resize(w, h int)
	Shutdown()
}

// VertexFloats is the number of float32 values per vertex in a DrawCmd
// vertex block: pos(2) + uv(2) + color(4).
const VertexFloats = 8
