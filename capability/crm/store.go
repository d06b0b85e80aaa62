package crm

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Profile file names inside the data directory.
const (
	BankingProfileFile   = "client_sample.json"
	InsuranceProfileFile = "customer-insurance.json"
)

//go:embed data/*.json
var embeddedData embed.FS

// Store reads client profile documents from a filesystem.
// Files are read on every lookup so an override directory can be edited live.
type Store struct {
	fsys fs.FS
}

// NewStore returns a store over dir, or over the embedded sample profiles when
// dir is empty.
func NewStore(dir string) *Store {
	if dir == "" {
		sub, err := fs.Sub(embeddedData, "data")
		if err != nil {
			panic(err)
		}
		return &Store{fsys: sub}
	}
	return &Store{fsys: os.DirFS(dir)}
}

// NewStoreFS returns a store over an arbitrary filesystem.
func NewStoreFS(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// ExportSamples writes the embedded sample profiles into dir so a deployment
// can start from them and point DataDir at the copy. Existing files are kept
// unless overwrite is set. It returns the names of the files written.
func ExportSamples(dir string, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	var written []string
	for _, name := range []string{BankingProfileFile, InsuranceProfileFile} {
		target := filepath.Join(dir, name)
		if !overwrite {
			if _, err := os.Stat(target); err == nil {
				continue
			}
		}
		data, err := embeddedData.ReadFile("data/" + name)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}

var errInvalidJSON = errors.New("invalid JSON format")

// profile is a raw client document; nested sections pass through untouched.
type profile map[string]json.RawMessage

func (s *Store) load(name string) (profile, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fs.ErrNotExist
		}
		return nil, err
	}
	var p profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errInvalidJSON
	}
	return p, nil
}

func (p profile) str(key string) string {
	raw, ok := p[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (p profile) field(key string) json.RawMessage {
	if raw, ok := p[key]; ok {
		return raw
	}
	return json.RawMessage("null")
}

func (p profile) matchesName(fullName string) bool {
	return strings.EqualFold(p.str("fullName"), fullName)
}

func (p profile) matchesID(id string) bool {
	return p.str("clientID") == id || p.str("id") == id
}

// pick copies the listed keys, using null for missing ones.
func (p profile) pick(keys ...string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		out[k] = p.field(k)
	}
	return out
}

// loadError maps a load failure to the message returned to the model.
func loadError(err error, label string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s data file not found", label)
	case errors.Is(err, errInvalidJSON):
		return fmt.Errorf("Invalid JSON format in %s data file", label)
	default:
		return fmt.Errorf("Error accessing %s data: %v", label, err)
	}
}
