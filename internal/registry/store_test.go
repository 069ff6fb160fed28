package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treykane/ali-bastion/internal/model"
)

const testPath = "/home/u/.ali-bastion/config.json"

func profile(name, host string) model.HostProfile {
	return model.HostProfile{Name: name, Hostname: host, Port: model.DefaultPort, Username: "user"}
}

func TestLoadCreatesMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	r, err := Load(fs, testPath)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())

	exists, err := afero.Exists(fs, testPath)
	require.NoError(t, err)
	assert.True(t, exists)

	b, err := afero.ReadFile(fs, testPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hosts":{}}`, string(b))
}

func TestAddGetRemove(t *testing.T) {
	r := New(afero.NewMemMapFs(), testPath)
	h := profile("test_host", "192.168.1.1")
	r.Add(h)

	got, ok := r.Get("test_host")
	require.True(t, ok)
	assert.Equal(t, h, got)

	_, ok = r.Get("TEST_HOST")
	assert.False(t, ok, "names are case-sensitive")

	assert.True(t, r.Remove("test_host"))
	assert.False(t, r.Remove("test_host"))
	assert.Equal(t, 0, r.Len())
}

func TestAddOverwritesExistingName(t *testing.T) {
	r := New(afero.NewMemMapFs(), testPath)
	r.Add(profile("a", "10.0.0.1"))
	r.Add(profile("b", "10.0.0.2"))
	r.Add(profile("a", "10.0.0.9"))

	require.Equal(t, 2, r.Len())
	got, _ := r.Get("a")
	assert.Equal(t, "10.0.0.9", got.Hostname)

	names := []string{}
	for _, h := range r.List() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestLookupNotFound(t *testing.T) {
	r := New(afero.NewMemMapFs(), testPath)
	_, err := r.Lookup("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveLoadPreservesOrderAndSecrets(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(fs, testPath)
	secret := "AQID"
	withPw := profile("zulu", "10.0.0.3")
	withPw.Password = &secret
	r.Add(withPw)
	r.Add(profile("alpha", "10.0.0.1"))
	r.Add(profile("mike", "10.0.0.2"))
	require.NoError(t, r.Save())

	loaded, err := Load(fs, testPath)
	require.NoError(t, err)
	list := loaded.List()
	require.Len(t, list, 3)
	assert.Equal(t, "zulu", list[0].Name)
	assert.Equal(t, "alpha", list[1].Name)
	assert.Equal(t, "mike", list[2].Name)
	require.NotNil(t, list[0].Password)
	assert.Equal(t, "AQID", *list[0].Password)
	assert.Nil(t, list[1].Password)

	tmpExists, _ := afero.Exists(fs, testPath+".tmp")
	assert.False(t, tmpExists)
}

func TestLoadReadsLegacyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(filepath.Dir(testPath), 0o700))
	legacy := `{
  "hosts": {
    "beta": {"name": "beta", "hostname": "b.example", "port": 22, "username": "root"},
    "alpha": {"name": "alpha", "hostname": "a.example", "port": 60022, "username": "ops", "password": "cGFzcw=="}
  }
}`
	require.NoError(t, afero.WriteFile(fs, testPath, []byte(legacy), 0o600))

	r, err := Load(fs, testPath)
	require.NoError(t, err)
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "beta", list[0].Name)
	assert.Equal(t, uint16(22), list[0].Port)
	assert.True(t, list[1].HasPassword())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte("{not json"), 0o600))
	_, err := Load(fs, testPath)
	assert.Error(t, err)
}

func TestLoadTreatsEmptyFileAsEmptyRegistry(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte("  \n"), 0o600))
	r, err := Load(fs, testPath)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestValidateName(t *testing.T) {
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName("  "))
	assert.Error(t, ValidateName(" prod"))
	assert.NoError(t, ValidateName("prod-db"))
}
