package renderer2d

import "sync"

// Channel is the unbounded multi-producer conduit between controllers and
// the renderer. Each Send delivers one flushed unit; units are kept whole
// all the way to the batcher. Sends from one goroutine stay in order;
// interleaving across goroutines is whatever the lock arbitration yields.
type Channel struct {
	mu      sync.Mutex
	packets [][]Vertex
}

func NewChannel() *Channel { return &Channel{} }

// Send enqueues one unit. It never blocks and never splits the unit. The
// channel takes ownership of the slice.
func (c *Channel) Send(packet []Vertex) {
	if len(packet) == 0 {
		return
	}
	c.mu.Lock()
	c.packets = append(c.packets, packet)
	c.mu.Unlock()
}

// Drain returns every unit available right now, in arrival order, without
// blocking. Units sent after Drain returns are left for the next call.
func (c *Channel) Drain() [][]Vertex {
	c.mu.Lock()
	out := c.packets
	c.packets = nil
	c.mu.Unlock()
	return out
}

// Len reports the number of queued units.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.packets)
}
