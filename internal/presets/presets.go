// Package presets ships ready-made dashboards.
package presets

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/lacquerai/dashwire/internal/widget"
)

//go:embed dashboards/*.json
var dashboards embed.FS

// ErrPresetNotFound is returned by Get for unknown names.
var ErrPresetNotFound = errors.New("preset not found")

// Preset is a named dashboard.
type Preset struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Config      *widget.Config `json:"config"`
}

// List returns every preset sorted by name.
func List() ([]Preset, error) {
	entries, err := fs.ReadDir(dashboards, "dashboards")
	if err != nil {
		return nil, fmt.Errorf("failed to read presets: %w", err)
	}

	presets := make([]Preset, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}
		p, err := load(path.Join("dashboards", entry.Name()))
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}

	sort.Slice(presets, func(i, j int) bool {
		return presets[i].Name < presets[j].Name
	})
	return presets, nil
}

// Get returns the preset with the given name, ignoring case.
func Get(name string) (Preset, error) {
	presets, err := List()
	if err != nil {
		return Preset{}, err
	}
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %s", ErrPresetNotFound, name)
}

func load(file string) (Preset, error) {
	data, err := dashboards.ReadFile(file)
	if err != nil {
		return Preset{}, fmt.Errorf("failed to read preset %s: %w", file, err)
	}

	var raw struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Config      json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Preset{}, fmt.Errorf("failed to parse preset %s: %w", file, err)
	}

	cfg, err := widget.ParseConfig(raw.Config)
	if err != nil {
		return Preset{}, fmt.Errorf("preset %s: %w", file, err)
	}

	name := raw.Name
	if name == "" {
		name = strings.TrimSuffix(path.Base(file), path.Ext(file))
	}
	return Preset{Name: name, Description: raw.Description, Config: cfg}, nil
}
