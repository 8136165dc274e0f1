package renderer2d

// Batch is an ordered run of vertices sharing one bound resource; it is
// rendered with a single draw call.
type Batch struct {
	Key   BatchKey
	Verts []Vertex
}

// Batcher groups drained vertices by (kind, index). Batch membership is a
// pure function of the key; submission order is preserved within a batch,
// and batches keep the order in which their keys were first seen.
type Batcher struct {
	index   map[BatchKey]int
	batches []*Batch
}

func NewBatcher() *Batcher {
	return &Batcher{index: make(map[BatchKey]int)}
}

// AddUnit appends every vertex of one channel unit to its batch. Units are
// never split across frames: the whole slice lands in this frame's batches.
func (b *Batcher) AddUnit(unit []Vertex) {
	for _, v := range unit {
		key := BatchKey{Kind: v.Kind, Index: v.Index}
		i, ok := b.index[key]
		if !ok {
			i = len(b.batches)
			b.index[key] = i
			b.batches = append(b.batches, &Batch{Key: key})
		}
		b.batches[i].Verts = append(b.batches[i].Verts, v)
	}
}

// Batches returns the current batches in first-encounter order.
func (b *Batcher) Batches() []*Batch { return b.batches }

// Reset discards all batches; the next frame starts empty.
func (b *Batcher) Reset() {
	clear(b.index)
	b.batches = b.batches[:0]
}
