package widget

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ConfigVersion is the version written into exported configs.
const ConfigVersion = "1.0.0"

var (
	// ErrInvalidConfig is returned when a config cannot be parsed or has
	// no widgets array.
	ErrInvalidConfig = errors.New("invalid configuration format")

	// ErrUnsupportedVersion is returned for configs written by an
	// incompatible major version.
	ErrUnsupportedVersion = errors.New("unsupported configuration version")
)

// NewConfig builds a Config snapshot from widgets.
func NewConfig(widgets []Widget) *Config {
	if widgets == nil {
		widgets = []Widget{}
	}
	return &Config{
		Version:      ConfigVersion,
		TotalWidgets: len(widgets),
		Widgets:      widgets,
	}
}

// ParseConfig decodes an exported dashboard. JSON and YAML are accepted.
// The document must carry a "widgets" array; "totalWidgets" defaults to
// the number of widgets when missing or zero.
func ParseConfig(data []byte) (*Config, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrInvalidConfig
	}

	if data[0] != '{' {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		data = converted
	}

	var raw struct {
		Version      string          `json:"version"`
		TotalWidgets *int            `json:"totalWidgets"`
		Widgets      json.RawMessage `json:"widgets"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	widgetsJSON := bytes.TrimSpace(raw.Widgets)
	if len(widgetsJSON) == 0 || widgetsJSON[0] != '[' {
		return nil, ErrInvalidConfig
	}

	if err := checkVersion(raw.Version); err != nil {
		return nil, err
	}

	var widgets []Widget
	if err := json.Unmarshal(widgetsJSON, &widgets); err != nil {
		return nil, fmt.Errorf("%w: widgets: %v", ErrInvalidConfig, err)
	}

	cfg := NewConfig(widgets)
	if raw.TotalWidgets != nil && *raw.TotalWidgets > 0 {
		cfg.TotalWidgets = *raw.TotalWidgets
	}
	return cfg, nil
}

// EncodeConfig renders cfg as indented JSON.
func EncodeConfig(cfg *Config) ([]byte, error) {
	out := *cfg
	if out.Version == "" {
		out.Version = ConfigVersion
	}
	if out.Widgets == nil {
		out.Widgets = []Widget{}
	}
	return json.MarshalIndent(out, "", "  ")
}

// checkVersion accepts unversioned configs and configs sharing our major.
func checkVersion(v string) error {
	if v == "" {
		return nil
	}

	got, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, v, err)
	}

	current := semver.MustParse(ConfigVersion)
	if got.Major() != current.Major() {
		return fmt.Errorf("%w: %s (expected %d.x)", ErrUnsupportedVersion, got, current.Major())
	}
	return nil
}
