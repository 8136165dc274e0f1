package renderer2d

import (
	"github.com/kilngfx/kiln/engine/colors"
	"github.com/kilngfx/kiln/engine/gmath"
)

// ResourceKind tells the renderer which cache resolves a vertex's bound
// texture.
type ResourceKind uint8

const (
	// KindTexture binds a texture cache page; the index is the page index.
	KindTexture ResourceKind = iota
	// KindFont binds the glyph atlas; the index is always 0.
	KindFont
)

// Vertex is one triangle-list vertex as produced by controllers. Kind and
// Index never reach the GPU; they only key batch formation.
type Vertex struct {
	Pos   gmath.Vec2
	UV    gmath.Vec2
	Color colors.Color
	Kind  ResourceKind
	Index int32
}

// BatchKey identifies the resource a batch binds.
type BatchKey struct {
	Kind  ResourceKind
	Index int32
}
