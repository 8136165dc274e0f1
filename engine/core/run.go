package core

import (
	"io"
	"log/slog"
	"runtime"
	"time"
)

// Run wires the platform window + graphics device and executes the main
// loop. The calling goroutine becomes the single consumer thread: it owns
// the graphics context and is the only one allowed to touch the device.
// Producer goroutines interact with the frame only through cloned renderer
// controllers.
func Run(app App, cfg Config, logger *slog.Logger,
	newWindow func(Config) (Window, error),
	newDevice func(Window, Config) (GraphicsDevice, error)) error {

	// Graphics contexts require the main OS thread.
	runtime.LockOSThread()

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	win, err := newWindow(cfg)
	if err != nil {
		return err
	}

	dev, err := newDevice(win, cfg)
	if err != nil {
		return err
	}
	defer dev.Shutdown()

	w, h := win.FramebufferSize()
	dev.Resize(w, h)

	eng := &Engine{Window: win, Device: dev, start: time.Now()}
	win.SetEventCallback(func(ev Event) {
		app.OnEvent(eng, ev)
		if _, ok := ev.(EventResize); ok {
			fw, fh := win.FramebufferSize()
			if fw < 1 || fh < 1 {
				return
			}
			dev.Resize(fw, fh)
		}
	})

	app.OnStart(eng)

	clear := cfg.ClearColor
	prev := time.Now()

	for !win.ShouldClose() {
		now := time.Now()
		dt := now.Sub(prev).Seconds()
		prev = now

		// Poll OS events (platform emits via the callback above).
		win.PollEvents()

		dev.Clear(clear[0], clear[1], clear[2], clear[3])
		app.OnFrame(eng, dt)

		win.SwapBuffers()
	}

	app.OnShutdown(eng)
	logger.Info("engine exit", slog.Duration("uptime", eng.Uptime()))
	return nil
}
