package core

import "time"

// App defines the application hooks driven by Run.
type App interface {
	OnStart(e *Engine)             // once, after window/device init
	OnFrame(e *Engine, dt float64) // once per frame on the consumer thread
	OnEvent(e *Engine, ev Event)   // window/input events
	OnShutdown(e *Engine)          // before exit
}

// Engine exposes core services to the App.
type Engine struct {
	Window Window
	Device GraphicsDevice
	start  time.Time
}

func (e *Engine) Uptime() time.Duration { return time.Since(e.start) }

// Window abstraction; see engine/platform for the GLFW implementation.
type Window interface {
	PollEvents()
	SwapBuffers()
	ShouldClose() bool
	RequestClose()
	FramebufferSize() (int, int)
	SetTitle(title string)
	SetEventCallback(cb func(Event))
}

// Event model.
type Event interface{ isEvent() }

type EventCloseRequested struct{}

func (EventCloseRequested) isEvent() {}

type EventResize struct{ W, H int }

func (EventResize) isEvent() {}

type EventKey struct {
	Key  Key
	Down bool
	Mods Mod
}

func (EventKey) isEvent() {}

type EventMouseMove struct{ X, Y float64 }

func (EventMouseMove) isEvent() {}

type EventScroll struct{ Xoff, Yoff float64 }

func (EventScroll) isEvent() {}

// Key/mod enums (subset; add as needed).
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeySpace
)

type Mod int

const (
	ModNone  Mod = 0
	ModShift Mod = 1 << 0
	ModCtrl  Mod = 1 << 1
	ModAlt   Mod = 1 << 2
	ModSuper Mod = 1 << 3
)

// Config for the engine run.
type Config struct {
	Title      string
	Width      int
	Height     int
	VSync      bool
	ClearColor [4]float32 // RGBA

	// Texture cache settings. Zero values mean 2048x2048 pages with no
	// page cap.
	CachePageW, CachePageH int
	MaxCachePages          int

	// MaxBatchVertices caps the vertices uploaded per draw call; batches
	// beyond it are truncated. Zero means the default budget (65536).
	MaxBatchVertices int
}
