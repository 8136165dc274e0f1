// Package glbackend implements core.GraphicsDevice on OpenGL 3.3 core. All
// calls must run on the thread holding the GL context (core.Run arranges
// that).
package glbackend

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/kilngfx/kiln/engine/core"
)

// vboVertexCap sizes the streaming vertex buffer. Batches beyond it are
// drawn in chunks at triangle boundaries.
const vboVertexCap = 65536

type texture struct {
	id   uint32
	w, h int
}

func (t *texture) Size() (int, int) { return t.w, t.h }

// Device is the OpenGL backend.
type Device struct {
	program uint32
	vao     uint32
	vbo     uint32

	locProj   int32
	locTex    int32
	locIsFont int32

	maxTexSize int
	textures   []*texture
}

// NewDevice creates the pipeline on the current GL context. The context must
// already be current on the calling thread.
func NewDevice() (*Device, error) {
	d := &Device{}
	if err := d.init(); err != nil {
		d.Shutdown()
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	var err error
	d.program, err = makeProgram(vertexSource, fragmentSource)
	if err != nil {
		return err
	}

	d.locProj = gl.GetUniformLocation(d.program, gl.Str("uProj\x00"))
	d.locTex = gl.GetUniformLocation(d.program, gl.Str("uTex\x00"))
	d.locIsFont = gl.GetUniformLocation(d.program, gl.Str("uIsFont\x00"))

	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)

	gl.GenBuffers(1, &d.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, vboVertexCap*core.VertexFloats*4, nil, gl.STREAM_DRAW)

	// layout(location = 0) in vec2 aPos;
	// layout(location = 1) in vec2 aUV;
	// layout(location = 2) in vec4 aColor;
	const stride = core.VertexFloats * 4 // bytes
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, stride, unsafe.Pointer(uintptr(0)))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, stride, unsafe.Pointer(uintptr(2*4)))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(2, 4, gl.FLOAT, false, stride, unsafe.Pointer(uintptr(4*4)))

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	var maxTex int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxTex)
	d.maxTexSize = int(maxTex)

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Disable(gl.DEPTH_TEST)
	return nil
}

func (d *Device) Shutdown() {
	for _, t := range d.textures {
		if t.id != 0 {
			gl.DeleteTextures(1, &t.id)
		}
	}
	d.textures = nil
	if d.vbo != 0 {
		gl.DeleteBuffers(1, &d.vbo)
	}
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
	}
	if d.program != 0 {
		gl.DeleteProgram(d.program)
	}
}

func (d *Device) MaxTextureSize() int { return d.maxTexSize }

func (d *Device) CreateTexture(desc core.TextureDesc) (core.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 ||
		desc.Width > d.maxTexSize || desc.Height > d.maxTexSize {
		return nil, core.ErrDimensionsNotSupported
	}

	t := &texture{w: desc.Width, h: desc.Height}
	gl.GenTextures(1, &t.id)

	var prev int32
	gl.GetIntegerv(gl.TEXTURE_BINDING_2D, &prev)
	gl.BindTexture(gl.TEXTURE_2D, t.id)

	filter := int32(gl.LINEAR)
	if desc.MagNearest {
		filter = gl.NEAREST
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	var ptr unsafe.Pointer
	if desc.Pixels != nil {
		if len(desc.Pixels) != 4*desc.Width*desc.Height {
			gl.BindTexture(gl.TEXTURE_2D, uint32(prev))
			gl.DeleteTextures(1, &t.id)
			return nil, fmt.Errorf("gl: pixel data is %d bytes, want %d",
				len(desc.Pixels), 4*desc.Width*desc.Height)
		}
		ptr = gl.Ptr(desc.Pixels)
	} else {
		// Start from transparent black so unpacked atlas regions sample
		// to nothing.
		zero := make([]byte, 4*desc.Width*desc.Height)
		ptr = gl.Ptr(zero)
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8,
		int32(desc.Width), int32(desc.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, ptr)

	gl.BindTexture(gl.TEXTURE_2D, uint32(prev))
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *Device) WriteTexture(tex core.Texture, x, y, w, h int, pix []byte) error {
	t, ok := tex.(*texture)
	if !ok {
		return fmt.Errorf("gl: foreign texture %T", tex)
	}
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > t.w || y+h > t.h {
		return fmt.Errorf("gl: write rect (%d,%d %dx%d) outside %dx%d texture", x, y, w, h, t.w, t.h)
	}
	if len(pix) != 4*w*h {
		return fmt.Errorf("gl: pixel data is %d bytes, want %d", len(pix), 4*w*h)
	}
	if w == 0 || h == 0 {
		return nil
	}

	var prev int32
	gl.GetIntegerv(gl.TEXTURE_BINDING_2D, &prev)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, int32(x), int32(y), int32(w), int32(h),
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.BindTexture(gl.TEXTURE_2D, uint32(prev))
	return nil
}

func (d *Device) Draw(cmd core.DrawCmd) error {
	t, ok := cmd.Texture.(*texture)
	if !ok {
		return fmt.Errorf("gl: foreign texture %T", cmd.Texture)
	}
	n := cmd.VertexCount
	if n == 0 {
		return nil
	}
	if len(cmd.Vertices) < n*core.VertexFloats {
		return fmt.Errorf("gl: vertex block holds %d floats, want %d",
			len(cmd.Vertices), n*core.VertexFloats)
	}

	gl.UseProgram(d.program)
	proj := cmd.Proj
	gl.UniformMatrix4fv(d.locProj, 1, false, &proj[0])
	gl.Uniform1i(d.locTex, 0)
	isFont := int32(0)
	if cmd.IsFont {
		isFont = 1
	}
	gl.Uniform1i(d.locIsFont, isFont)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)

	// Upload in VBO-sized chunks, cut at triangle boundaries.
	for off := 0; off < n; {
		chunk := n - off
		if chunk > vboVertexCap {
			chunk = vboVertexCap - vboVertexCap%3
		}
		base := off * core.VertexFloats
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, chunk*core.VertexFloats*4,
			gl.Ptr(cmd.Vertices[base:base+chunk*core.VertexFloats]))
		gl.DrawArrays(gl.TRIANGLES, 0, int32(chunk))
		off += chunk
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.UseProgram(0)
	return nil
}

func (d *Device) Resize(w, h int) {
	gl.Viewport(0, 0, int32(w), int32(h))
}

func (d *Device) Clear(rf, gf, bf, af float32) {
	gl.ClearColor(rf, gf, bf, af)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// --- Shader utilities ---

const vertexSource = `
#version 330 core
layout(location=0) in vec2 aPos;
layout(location=1) in vec2 aUV;
layout(location=2) in vec4 aColor;
uniform mat4 uProj;
out vec2 vUV;
out vec4 vColor;
void main() {
    vUV = aUV;
    vColor = aColor;
    gl_Position = uProj * vec4(aPos, 0.0, 1.0);
}
` + "\x00"

const fragmentSource = `
#version 330 core
in vec2 vUV;
in vec4 vColor;
uniform sampler2D uTex;
uniform int uIsFont;
out vec4 FragColor;
void main() {
    vec4 texel = texture(uTex, vUV);
    if (uIsFont == 1) {
        FragColor = vec4(vColor.rgb, texel.a * vColor.a);
    } else {
        FragColor = texel * vColor;
    }
}
` + "\x00"

func makeShader(src string, shaderType uint32) (uint32, error) {
	sh := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	defer free()
	gl.ShaderSource(sh, 1, csrc, nil)
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen))
		gl.GetShaderInfoLog(sh, logLen, nil, gl.Str(log))
		return 0, fmt.Errorf("shader compile error: %s", log)
	}
	return sh, nil
}

func makeProgram(vsSrc, fsSrc string) (uint32, error) {
	vs, err := makeShader(vsSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fs, err := makeShader(fsSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vs)
		return 0, err
	}
	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	gl.DeleteShader(vs)
	gl.DeleteShader(fs)

	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		return 0, fmt.Errorf("program link error: %s", log)
	}
	return prog, nil
}
