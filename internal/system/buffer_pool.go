package system

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/ivlev/eventframe/internal/geometry"
)

// CanvasPool recycles full-canvas RGBA buffers for export renders. Templates
// come in a few fixed formats, so each canvas size keeps its own sync.Pool.
type CanvasPool struct {
	mu    sync.RWMutex
	sizes map[geometry.Dimensions]*sync.Pool

	gets   atomic.Uint64
	allocs atomic.Uint64
}

// PoolStats counts buffer requests served by the pool.
type PoolStats struct {
	Reused    uint64
	Allocated uint64
}

var canvasPool = NewCanvasPool()

// NewCanvasPool returns an empty pool.
func NewCanvasPool() *CanvasPool {
	return &CanvasPool{sizes: make(map[geometry.Dimensions]*sync.Pool)}
}

// GetImage returns a buffer the size of canvas from the shared pool. Its
// contents are unspecified; the compositor clears it before drawing.
func GetImage(canvas geometry.Dimensions) *image.RGBA {
	return canvasPool.Get(canvas)
}

// PutImage hands a buffer back to the shared pool.
func PutImage(img *image.RGBA) {
	canvasPool.Put(img)
}

// CanvasPoolStats reports the shared pool's counters.
func CanvasPoolStats() PoolStats {
	return canvasPool.Stats()
}

func (p *CanvasPool) Get(canvas geometry.Dimensions) *image.RGBA {
	p.gets.Add(1)
	return p.poolFor(canvas).Get().(*image.RGBA)
}

func (p *CanvasPool) poolFor(canvas geometry.Dimensions) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.sizes[canvas]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, ok = p.sizes[canvas]; !ok {
		pool = &sync.Pool{New: func() any {
			p.allocs.Add(1)
			return image.NewRGBA(image.Rect(0, 0, canvas.Width, canvas.Height))
		}}
		p.sizes[canvas] = pool
	}
	return pool
}

// Put stores img for reuse. Buffers the pool did not hand out, such as
// sub-images of a surface or sizes never requested, are dropped.
func (p *CanvasPool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) || img.Stride != 4*img.Rect.Dx() {
		return
	}
	canvas := geometry.Dimensions{Width: img.Rect.Dx(), Height: img.Rect.Dy()}
	p.mu.RLock()
	pool, ok := p.sizes[canvas]
	p.mu.RUnlock()
	if ok {
		pool.Put(img)
	}
}

func (p *CanvasPool) Stats() PoolStats {
	allocs := p.allocs.Load()
	gets := p.gets.Load()
	return PoolStats{Reused: gets - allocs, Allocated: allocs}
}
