package gmath

// Ortho builds a column-major pixel-space projection for a w×h framebuffer:
// origin top-left, X right, Y down, mapping onto clip space [-1,1].
func Ortho(w, h int) [16]float32 {
	fw, fh := float32(w), float32(h)
	return [16]float32{
		2 / fw, 0, 0, 0,
		0, -2 / fh, 0, 0,
		0, 0, -1, 0,
		-1, 1, 0, 1,
	}
}
