package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestDefaultConfig(t *testing.T) {
	c := Default()
	be.Equal(t, c.Runtime.StaticMemInitialCells, 1024)
	be.Equal(t, c.Build.WarningsAsNotes, true)
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	content := `
[runtime]
static-mem-initial-cells = 2048
debug = true

[build]
warnings-as-notes = false
`
	be.Err(t, os.WriteFile(filepath.Join(dir, "tinycxx.toml"), []byte(content), 0644), nil)

	c, err := Load(dir)
	be.Err(t, err, nil)
	be.Equal(t, c.Runtime.StaticMemInitialCells, 2048)
	be.Equal(t, c.Runtime.Debug, true)
	be.Equal(t, c.Build.WarningsAsNotes, false)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(t.TempDir())
	be.Equal(t, err != nil, true)
}

func TestFindAndLoadWalksUpDirectories(t *testing.T) {
	root := t.TempDir()
	content := "[runtime]\nstats = true\n"
	be.Err(t, os.WriteFile(filepath.Join(root, "tinycxx.toml"), []byte(content), 0644), nil)

	nested := filepath.Join(root, "a", "b", "c")
	be.Err(t, os.MkdirAll(nested, 0755), nil)

	c, err := FindAndLoad(nested)
	be.Err(t, err, nil)
	be.Equal(t, c.Runtime.Stats, true)
}

func TestFindAndLoadFallsBackToDefault(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	be.Err(t, err, nil)
	be.Equal(t, c.Runtime.StaticMemInitialCells, 1024)
}
