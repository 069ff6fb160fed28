// Package registry stores named SSH host profiles in a single JSON file.
//
// The whole file is read on Load and rewritten on Save; there is no locking and
// no partial update. Callers mutate the in-memory Registry first and persist only
// once the mutation is complete.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/treykane/ali-bastion/internal/model"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrNotFound is returned by Lookup when no profile has the requested name.
var ErrNotFound = errors.New("host not found")

type hostMap = orderedmap.OrderedMap[string, model.HostProfile]

type fileModel struct {
	Hosts *hostMap `json:"hosts"`
}

// Registry is the in-memory view of the registry file. Profiles keep the order
// in which they appear in the file; new names are appended.
type Registry struct {
	fs    afero.Fs
	path  string
	hosts *hostMap
}

// New returns an empty registry bound to path on fs. Nothing is written until Save.
func New(fs afero.Fs, path string) *Registry {
	return &Registry{fs: fs, path: path, hosts: orderedmap.New[string, model.HostProfile]()}
}

// Load reads the registry at path. A missing file is created empty, along with
// its parent directory.
func Load(fs afero.Fs, path string) (*Registry, error) {
	r := New(fs, path)
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := r.Save(); err != nil {
				return nil, err
			}
			return r, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return r, nil
	}
	fm := fileModel{Hosts: r.hosts}
	if err := json.Unmarshal(b, &fm); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if fm.Hosts == nil {
		fm.Hosts = orderedmap.New[string, model.HostProfile]()
	}
	r.hosts = fm.Hosts
	return r, nil
}

// Path returns the file backing the registry.
func (r *Registry) Path() string { return r.path }

// Save writes the whole registry to a temporary file and renames it into place.
func (r *Registry) Save() error {
	dir := filepath.Dir(r.path)
	if err := r.fs.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	b, err := json.MarshalIndent(fileModel{Hosts: r.hosts}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

// Add inserts the profile, replacing any existing profile with the same name.
// A replaced profile keeps its position.
func (r *Registry) Add(p model.HostProfile) {
	r.hosts.Set(p.Name, p)
}

// Remove deletes a profile by name and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	_, ok := r.hosts.Delete(name)
	return ok
}

// Get returns the profile stored under name.
func (r *Registry) Get(name string) (model.HostProfile, bool) {
	return r.hosts.Get(name)
}

// Lookup is Get with an ErrNotFound error for absent names.
func (r *Registry) Lookup(name string) (model.HostProfile, error) {
	p, ok := r.hosts.Get(name)
	if !ok {
		return model.HostProfile{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// Has reports whether a profile exists under name. Names are case-sensitive.
func (r *Registry) Has(name string) bool {
	_, ok := r.hosts.Get(name)
	return ok
}

// List returns a snapshot of all profiles in stored order.
func (r *Registry) List() []model.HostProfile {
	out := make([]model.HostProfile, 0, r.hosts.Len())
	for pair := r.hosts.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Len returns the number of profiles.
func (r *Registry) Len() int { return r.hosts.Len() }

// ValidateName rejects names that cannot serve as a registry key.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("host name cannot be empty")
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("host name cannot start or end with whitespace")
	}
	return nil
}
