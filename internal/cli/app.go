package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/lacquerai/dashwire/internal/fetch"
	"github.com/lacquerai/dashwire/internal/jsonvalue"
	"github.com/lacquerai/dashwire/internal/mapping"
	"github.com/lacquerai/dashwire/internal/store"
	"github.com/lacquerai/dashwire/internal/widget"
)

// openStore builds the dashboard store selected by --store and loads it.
// The returned close func releases the backing database, if any.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	var (
		persister store.Persister
		closeFn   = func() {}
	)

	path := viper.GetString("store-path")
	switch kind := viper.GetString("store"); kind {
	case "", "file":
		p, err := store.NewFilePersister(path)
		if err != nil {
			return nil, nil, err
		}
		persister = p
	case "sqlite":
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, nil, fmt.Errorf("getting home directory: %w", err)
			}
			dir := filepath.Join(home, ".dashwire")
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("creating dashboard directory: %w", err)
			}
			path = filepath.Join(dir, "dashboard.db")
		}
		p, err := store.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		persister = p
		closeFn = func() {
			if err := p.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close dashboard database")
			}
		}
	case "memory":
		persister = store.NewMemoryPersister()
	default:
		return nil, nil, fmt.Errorf("unknown store %q (expected file, sqlite or memory)", kind)
	}

	st := store.New(persister)
	if err := st.Load(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return st, closeFn, nil
}

// filePath returns the dashboard file when the file store is in use.
func filePath() (string, bool) {
	if kind := viper.GetString("store"); kind != "" && kind != "file" {
		return "", false
	}
	p, err := store.NewFilePersister(viper.GetString("store-path"))
	if err != nil {
		return "", false
	}
	return p.Path(), true
}

// newEngine builds a mapping engine from --locale and --currency-symbol.
func newEngine() (*mapping.Engine, error) {
	opts := []mapping.FormatterOption{
		mapping.WithCurrencySymbol(viper.GetString("currency-symbol")),
	}

	if loc := viper.GetString("locale"); loc != "" {
		tag, err := language.Parse(loc)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", loc, err)
		}
		opts = append(opts, mapping.WithLocale(tag))
	}

	return mapping.NewEngine(mapping.WithFormatter(mapping.NewFormatter(opts...))), nil
}

func newFetcher() *fetch.Client {
	return fetch.NewClient(fetch.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
}

// loadDocument reads a JSON document from a URL, a file, or stdin when
// source is "-".
func loadDocument(ctx context.Context, source string, stdin io.Reader, headers map[string]string) (any, error) {
	switch {
	case source == "-":
		doc, err := jsonvalue.Decode(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to decode stdin: %w", err)
		}
		return doc, nil

	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return newFetcher().Fetch(ctx, widget.APIConfig{URL: source, Headers: headers})

	default:
		f, err := os.Open(source) // #nosec G304 - path supplied by the user
		if err != nil {
			return nil, fmt.Errorf("failed to open document: %w", err)
		}
		defer f.Close()

		doc, err := jsonvalue.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", source, err)
		}
		return doc, nil
	}
}

// readWidgetFile reads one widget definition from a JSON or YAML file, or
// from stdin when path is "-".
func readWidgetFile(path string, stdin io.Reader) (widget.Widget, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 - path supplied by the user
	}
	if err != nil {
		return widget.Widget{}, fmt.Errorf("failed to read widget: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return widget.Widget{}, fmt.Errorf("failed to parse widget: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return widget.Widget{}, fmt.Errorf("failed to parse widget: %w", err)
		}
	}

	var w widget.Widget
	if err := json.Unmarshal(data, &w); err != nil {
		return widget.Widget{}, fmt.Errorf("failed to parse widget: %w", err)
	}
	return w, nil
}
