package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/lacquerai/dashwire/internal/widget"
)

// DefaultFileName is the dashboard file inside the dashwire home.
const DefaultFileName = "dashboard.json"

// FilePersister stores the dashboard as one JSON document.
type FilePersister struct {
	path string
	mu   sync.RWMutex
}

// NewFilePersister creates a persister writing to path. An empty path
// selects ~/.dashwire/dashboard.json.
func NewFilePersister(path string) (*FilePersister, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".dashwire", DefaultFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating dashboard directory: %w", err)
	}

	return &FilePersister{path: path}, nil
}

// Path returns the dashboard file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the dashboard. A missing file is an empty dashboard.
func (p *FilePersister) Load(ctx context.Context) (*widget.Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	data, err := os.ReadFile(p.path) // #nosec G304 - path is configured by the operator
	if errors.Is(err, fs.ErrNotExist) {
		return widget.NewConfig(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading dashboard: %w", err)
	}

	cfg, err := widget.ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p.path, err)
	}
	return cfg, nil
}

// Save writes the dashboard atomically.
func (p *FilePersister) Save(ctx context.Context, cfg *widget.Config) error {
	data, err := widget.EncodeConfig(cfg)
	if err != nil {
		return fmt.Errorf("marshalling dashboard: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".dashboard-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing dashboard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing dashboard: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("writing dashboard: %w", err)
	}

	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("moving dashboard into place: %w", err)
	}
	return nil
}
