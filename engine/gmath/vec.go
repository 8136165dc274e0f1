package gmath

import "github.com/chewxy/math32"

// Vec2 is a 2D float32 vector. Methods are value-based and never mutate.
type Vec2 struct{ X, Y float32 }

func V2(x, y float32) Vec2 { return Vec2{x, y} }

func (a Vec2) Add(b Vec2) Vec2    { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2    { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Mul(f float32) Vec2 { return Vec2{a.X * f, a.Y * f} }
func (a Vec2) Div(f float32) Vec2 { return a.Mul(1 / f) }
func (a Vec2) Dot(b Vec2) float32 { return a.X*b.X + a.Y*b.Y }
func (a Vec2) Len() float32       { return math32.Sqrt(a.Dot(a)) }

// Dst returns the distance between a and b.
func (a Vec2) Dst(b Vec2) float32 { return b.Sub(a).Len() }

// Perp returns the counter-clockwise perpendicular of a.
func (a Vec2) Perp() Vec2 { return Vec2{-a.Y, a.X} }

// Nor returns the unit vector in a's direction. The zero vector is
// returned unchanged.
func (a Vec2) Nor() Vec2 {
	l := a.Len()
	if l == 0 {
		return a
	}
	return a.Div(l)
}
