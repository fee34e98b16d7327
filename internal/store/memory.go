package store

import (
	"context"
	"sync"

	"github.com/lacquerai/dashwire/internal/widget"
)

// MemoryPersister keeps the encoded dashboard in memory.
type MemoryPersister struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemoryPersister creates an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (p *MemoryPersister) Load(ctx context.Context) (*widget.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data == nil {
		return widget.NewConfig(nil), nil
	}
	return widget.ParseConfig(p.data)
}

func (p *MemoryPersister) Save(ctx context.Context, cfg *widget.Config) error {
	data, err := widget.EncodeConfig(cfg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = data
	p.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
