// Package texcache caches arbitrary images into fixed-size GPU atlas pages
// and hands out stable handles for later UV lookup.
//
// Caching is serialized behind one mutex and must run on the thread that
// owns the graphics context (pages are device textures). Lookups read an
// immutable snapshot published atomically after every mutation, so render
// and producer threads never contend with a caching call.
package texcache

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kilngfx/kiln/engine/assets"
	"github.com/kilngfx/kiln/engine/core"
	"github.com/kilngfx/kiln/engine/gfx/atlas"
)

var (
	// ErrCacheTooSmall means the image exceeds the configured page size and
	// could never be cached, even into an empty page.
	ErrCacheTooSmall = errors.New("texcache: image larger than a cache page")

	// ErrNoSpace means every existing page rejected the image and the page
	// cap prevents creating another one.
	ErrNoSpace = errors.New("texcache: no space left in any cache page")
)

// Handle references an image cached in a Cache. Handles are monotonically
// increasing, never reused, and only meaningful to the cache that issued
// them.
type Handle uint32

// DefaultPageSize is the page dimension used when the config leaves it zero.
const DefaultPageSize = 2048

type page struct {
	tex  core.Texture
	tree *atlas.Tree
	w, h int
}

type entry struct {
	page int
	rect atlas.Rect
}

// snapshot is the immutable lookup view shared with readers.
type snapshot struct {
	entries map[Handle]entry
	pages   []core.Texture
}

// Cache owns a set of append-only atlas pages. Pages are created on demand,
// never resized and never destroyed while the cache lives; a handle's rect
// never changes or disappears.
type Cache struct {
	mu     sync.Mutex
	dev    core.GraphicsDevice
	logger *slog.Logger

	pageW, pageH int
	maxPages     int // 0 = unlimited; the white page is not counted
	pages        []page
	next         Handle
	white        Handle

	view atomic.Pointer[snapshot]
}

// New creates a cache issuing pages of pageW×pageH (0 means
// DefaultPageSize) with at most maxPages pages (0 means unlimited). It
// reserves a white 1×1 handle backed by its own tiny page so untextured
// fills can share the textured draw path; the first real page starts empty.
func New(dev core.GraphicsDevice, logger *slog.Logger, pageW, pageH, maxPages int) (*Cache, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if pageW <= 0 {
		pageW = DefaultPageSize
	}
	if pageH <= 0 {
		pageH = DefaultPageSize
	}
	c := &Cache{
		dev:      dev,
		logger:   logger,
		pageW:    pageW,
		pageH:    pageH,
		maxPages: maxPages,
	}

	whiteTex, err := dev.CreateTexture(core.TextureDesc{
		Width: 1, Height: 1,
		Pixels:     []byte{255, 255, 255, 255},
		MagNearest: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create white texture: %w", err)
	}
	whitePage := page{tex: whiteTex, tree: atlas.New(), w: 1, h: 1}
	c.white = c.next
	c.next++
	if _, err := whitePage.tree.Allocate(1, 1, uint64(c.white)); err != nil {
		return nil, err
	}
	c.pages = append(c.pages, whitePage)

	c.view.Store(&snapshot{
		entries: map[Handle]entry{c.white: {page: 0, rect: atlas.Rect{X: 0, Y: 0, W: 1, H: 1}}},
		pages:   []core.Texture{whiteTex},
	})
	return c, nil
}

// White returns the reserved 1×1 white handle.
func (c *Cache) White() Handle { return c.white }

// SetMaxPages caps the number of cache pages; 0 means unlimited.
func (c *Cache) SetMaxPages(n int) {
	c.mu.Lock()
	c.maxPages = n
	c.mu.Unlock()
}

// SetPageSize changes the dimensions used for pages created from now on.
// Existing pages keep their size.
func (c *Cache) SetPageSize(w, h int) {
	c.mu.Lock()
	if w > 0 {
		c.pageW = w
	}
	if h > 0 {
		c.pageH = h
	}
	c.mu.Unlock()
}

// CacheImage packs tightly packed RGBA8 pixels of size w×h into the first
// page that accepts them (pages are tried in creation order), uploading the
// pixels into the page texture. Must be called on the context thread.
func (c *Cache) CacheImage(pix []byte, w, h int) (Handle, error) {
	if w <= 0 || h <= 0 || len(pix) != 4*w*h {
		return 0, fmt.Errorf("texcache: invalid image: %dx%d with %d bytes", w, h, len(pix))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if w > c.pageW || h > c.pageH {
		return 0, ErrCacheTooSmall
	}

	handle := c.next
	c.next++

	for i := range c.pages {
		p := &c.pages[i]
		nw := float32(w) / float32(p.w)
		nh := float32(h) / float32(p.h)
		r, err := p.tree.Allocate(nw, nh, uint64(handle))
		if err != nil {
			continue
		}
		return c.commit(handle, i, r, pix, w, h)
	}

	// The white page never counts against the cap.
	if c.maxPages != 0 && len(c.pages)-1 >= c.maxPages {
		return 0, ErrNoSpace
	}

	tex, err := c.dev.CreateTexture(core.TextureDesc{Width: c.pageW, Height: c.pageH})
	if err != nil {
		return 0, fmt.Errorf("create cache page: %w", err)
	}
	p := page{tex: tex, tree: atlas.New(), w: c.pageW, h: c.pageH}
	c.pages = append(c.pages, p)
	c.logger.Info("created texture cache page",
		slog.Int("page", len(c.pages)-1), slog.Int("w", c.pageW), slog.Int("h", c.pageH))

	// A fresh tree always accepts an image within the page bound.
	r, err := p.tree.Allocate(float32(w)/float32(p.w), float32(h)/float32(p.h), uint64(handle))
	if err != nil {
		return 0, err
	}
	return c.commit(handle, len(c.pages)-1, r, pix, w, h)
}

// commit uploads the pixels and publishes a new lookup snapshot. Called with
// c.mu held.
func (c *Cache) commit(h Handle, pageIx int, r atlas.Rect, pix []byte, w, hgt int) (Handle, error) {
	p := c.pages[pageIx]
	px := int(r.X*float32(p.w) + 0.5)
	py := int(r.Y*float32(p.h) + 0.5)
	if err := c.dev.WriteTexture(p.tex, px, py, w, hgt, pix); err != nil {
		return 0, fmt.Errorf("upload image to page %d: %w", pageIx, err)
	}

	old := c.view.Load()
	entries := make(map[Handle]entry, len(old.entries)+1)
	for k, v := range old.entries {
		entries[k] = v
	}
	entries[h] = entry{page: pageIx, rect: r}
	pages := make([]core.Texture, len(c.pages))
	for i := range c.pages {
		pages[i] = c.pages[i].tex
	}
	c.view.Store(&snapshot{entries: entries, pages: pages})

	c.logger.Debug("cached image",
		slog.Int("handle", int(h)), slog.Int("page", pageIx),
		slog.Int("w", w), slog.Int("h", hgt))
	return h, nil
}

// CacheImageBytes decodes encoded image bytes (PNG or JPEG) and caches the
// result.
func (c *Cache) CacheImageBytes(data []byte) (Handle, error) {
	w, h, pix, err := assets.DecodeRGBA(data)
	if err != nil {
		return 0, err
	}
	return c.CacheImage(pix, w, h)
}

// CacheFile reads, decodes and caches the image at path.
func (c *Cache) CacheFile(path string) (Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %q: %w", path, err)
	}
	return c.CacheImageBytes(data)
}

// Lookup returns the page index and normalized rect for a cached handle.
// Safe to call from any goroutine; never blocks a caching call.
func (c *Cache) Lookup(h Handle) (pageIx int, r atlas.Rect, ok bool) {
	s := c.view.Load()
	e, ok := s.entries[h]
	if !ok {
		return 0, atlas.Rect{}, false
	}
	return e.page, e.rect, true
}

// PageTexture returns the device texture backing page i, or nil if i is out
// of range. Safe to call from any goroutine.
func (c *Cache) PageTexture(i int) core.Texture {
	s := c.view.Load()
	if i < 0 || i >= len(s.pages) {
		return nil
	}
	return s.pages[i]
}

// PageCount reports how many pages exist (including the white page).
func (c *Cache) PageCount() int {
	return len(c.view.Load().pages)
}
