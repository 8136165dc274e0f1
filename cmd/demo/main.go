// Demo exercising the 2D renderer: solid shapes and text drawn on the main
// thread, plus a bouncing textured quad driven by a producer goroutine
// through its own controller.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/kilngfx/kiln/engine/colors"
	"github.com/kilngfx/kiln/engine/core"
	glbackend "github.com/kilngfx/kiln/engine/gfx/gl"
	"github.com/kilngfx/kiln/engine/gfx/renderer2d"
	"github.com/kilngfx/kiln/engine/gfx/texcache"
	"github.com/kilngfx/kiln/engine/gmath"
	"github.com/kilngfx/kiln/engine/logging"
	"github.com/kilngfx/kiln/engine/platform"
	"github.com/kilngfx/kiln/engine/text"
)

type app struct {
	logger *slog.Logger
	cfg    core.Config

	r2d  *renderer2d.Renderer
	font text.FontHandle
	tex  texcache.Handle

	stop chan struct{}
	wg   sync.WaitGroup

	elapsed float64
}

func (a *app) OnStart(e *core.Engine) {
	var err error
	a.r2d, err = renderer2d.New(e.Device, a.logger, a.cfg)
	if err != nil {
		a.logger.Error("renderer init failed", slog.Any("err", err))
		e.Window.RequestClose()
		return
	}
	w, h := e.Window.FramebufferSize()
	a.r2d.Resize(w, h)

	a.tex, err = a.r2d.Textures().CacheImage(checkerboard(64, 8), 64, 64)
	if err != nil {
		a.logger.Error("texture cache failed", slog.Any("err", err))
		e.Window.RequestClose()
		return
	}

	a.font, err = a.r2d.Glyphs().CacheGlyphsFromBytes("goregular", goregular.TTF, 24, text.ASCII())
	if err != nil {
		a.logger.Error("font cache failed", slog.Any("err", err))
		e.Window.RequestClose()
		return
	}

	// Producer goroutine: bounces a textured quad around the window,
	// flushing one unit per tick through its own controller.
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.bounce(a.r2d.NewController(), float32(a.cfg.Width), float32(a.cfg.Height))
}

func (a *app) bounce(c *renderer2d.Controller, w, h float32) {
	defer a.wg.Done()

	const size, speed = 96, 220
	pos := gmath.V2(40, 40)
	dir := gmath.V2(1, 0.7).Nor()

	tick := time.NewTicker(time.Second / 120)
	defer tick.Stop()
	prev := time.Now()

	for {
		select {
		case <-a.stop:
			return
		case now := <-tick.C:
			dt := float32(now.Sub(prev).Seconds())
			prev = now

			pos = pos.Add(dir.Mul(speed * dt))
			if pos.X < 0 || pos.X+size > w {
				dir.X = -dir.X
			}
			if pos.Y < 0 || pos.Y+size > h {
				dir.Y = -dir.Y
			}

			c.TexturedQuad(a.tex, pos.X, pos.Y, size, size, colors.White)
			c.Flush()
		}
	}
}

func (a *app) OnFrame(e *core.Engine, dt float64) {
	if a.r2d == nil {
		return
	}
	a.elapsed += dt

	c := a.r2d.NewController()
	c.Rect(20, 20, 160, 100, colors.DarkGray)
	c.Line(gmath.V2(20, 140), gmath.V2(180, 140), 3, colors.Yellow)

	pulse := float32(40 + 10*math.Sin(a.elapsed*2))
	c.Circle(gmath.V2(100, 240), pulse, 32, colors.Cyan)

	stats := a.r2d.Stats()
	c.Text(fmt.Sprintf("%.1f fps\n%d batches, %d verts", 1/dt, stats.Batches, stats.Vertices),
		gmath.V2(24, 24), a.font, colors.White)
	c.Flush()

	a.r2d.RecvData()
	if err := a.r2d.Render(); err != nil {
		a.logger.Error("render failed", slog.Any("err", err))
	}
}

func (a *app) OnEvent(e *core.Engine, ev core.Event) {
	switch ev := ev.(type) {
	case core.EventResize:
		if a.r2d != nil {
			a.r2d.Resize(ev.W, ev.H)
		}
	case core.EventKey:
		if ev.Key == core.KeyEscape && ev.Down {
			e.Window.RequestClose()
		}
	}
}

func (a *app) OnShutdown(e *core.Engine) {
	if a.stop != nil {
		close(a.stop)
		a.wg.Wait()
	}
}

// checkerboard returns an RGBA checkerboard of side px with cells of the
// given size.
func checkerboard(side, cell int) []byte {
	pix := make([]byte, 4*side*side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			i := 4 * (y*side + x)
			if (x/cell+y/cell)%2 == 0 {
				pix[i], pix[i+1], pix[i+2] = 240, 240, 240
			} else {
				pix[i], pix[i+1], pix[i+2] = 40, 80, 160
			}
			pix[i+3] = 255
		}
	}
	return pix
}

func main() {
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logDir := flag.String("log-dir", "", "log directory (default: user config dir)")
	flag.Parse()

	lg := logging.New(*level, *logDir, true)

	cfg := core.Config{
		Title:      "kiln demo",
		Width:      1024,
		Height:     768,
		VSync:      true,
		ClearColor: [4]float32{0.08, 0.08, 0.1, 1},
	}

	a := &app{logger: lg.Logger, cfg: cfg}

	err := core.Run(a, cfg, lg.Logger,
		func(cfg core.Config) (core.Window, error) {
			return platform.NewGLFWWindow(cfg, lg.Logger, nil)
		},
		func(_ core.Window, _ core.Config) (core.GraphicsDevice, error) {
			return glbackend.NewDevice()
		})
	if err != nil {
		lg.Logger.Error("run failed", slog.Any("err", err))
		os.Exit(1)
	}
}
