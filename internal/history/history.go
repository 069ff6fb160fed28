// Package history remembers when each host was last connected to.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/treykane/ali-bastion/internal/appconfig"
	"github.com/treykane/ali-bastion/internal/model"
)

type store struct {
	LastUsed map[string]int64 `json:"last_used"`
}

func filePath() (string, error) {
	dir, err := appconfig.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}

// Touch records a connection attempt for a host name.
func Touch(name string) error {
	st, err := load()
	if err != nil {
		return err
	}
	st.LastUsed[name] = time.Now().Unix()
	return save(st)
}

// Forget drops a host from the history, used when it is removed from the registry.
func Forget(name string) error {
	st, err := load()
	if err != nil {
		return err
	}
	if _, ok := st.LastUsed[name]; !ok {
		return nil
	}
	delete(st.LastUsed, name)
	return save(st)
}

// LastUsed returns last connection timestamps by host name.
func LastUsed() (map[string]int64, error) {
	st, err := load()
	if err != nil {
		return nil, err
	}
	return st.LastUsed, nil
}

// SortHostsRecent returns a new slice sorted by recent activity (desc). Hosts
// with equal activity keep their registry order.
func SortHostsRecent(hosts []model.HostProfile, lastUsed map[string]int64) []model.HostProfile {
	out := append([]model.HostProfile(nil), hosts...)
	sort.SliceStable(out, func(i, j int) bool {
		return lastUsed[out[i].Name] > lastUsed[out[j].Name]
	})
	return out
}

func load() (store, error) {
	path, err := filePath()
	if err != nil {
		return store{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store{LastUsed: map[string]int64{}}, nil
		}
		return store{}, err
	}
	var st store
	if err := json.Unmarshal(b, &st); err != nil {
		return store{LastUsed: map[string]int64{}}, nil
	}
	if st.LastUsed == nil {
		st.LastUsed = map[string]int64{}
	}
	return st, nil
}

func save(st store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
