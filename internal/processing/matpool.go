package processing

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

const maxPooledPerKey = 8

// MatPool recycles OpenCV Mats between slice workers so scratch buffers
// are not reallocated in native memory for every slice. Safe for
// concurrent use.
type MatPool struct {
	mu   sync.Mutex
	pool map[string][]gocv.Mat
}

func NewMatPool() *MatPool {
	return &MatPool{pool: make(map[string][]gocv.Mat)}
}

func poolKey(rows, cols int, matType gocv.MatType) string {
	return fmt.Sprintf("%dx%d/%d", rows, cols, int(matType))
}

// Get returns a pooled Mat of the requested shape, or allocates one.
func (p *MatPool) Get(rows, cols int, matType gocv.MatType) gocv.Mat {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey(rows, cols, matType)
	if mats := p.pool[key]; len(mats) > 0 {
		m := mats[len(mats)-1]
		p.pool[key] = mats[:len(mats)-1]
		return m
	}
	return gocv.NewMatWithSize(rows, cols, matType)
}

// Put returns a Mat to the pool, closing it when the pool for its shape
// is full.
func (p *MatPool) Put(m gocv.Mat) {
	if m.Empty() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey(m.Rows(), m.Cols(), m.Type())
	if len(p.pool[key]) < maxPooledPerKey {
		p.pool[key] = append(p.pool[key], m)
		return
	}
	m.Close()
}

// Close releases every pooled Mat.
func (p *MatPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, mats := range p.pool {
		for _, m := range mats {
			m.Close()
		}
		delete(p.pool, key)
	}
}
