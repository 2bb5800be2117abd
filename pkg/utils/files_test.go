package utils

import (
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func TestGetPathInfoResolvesAbsolutePathAndParent(t *testing.T) {
	fullPath, parentDir, err := GetPathInfo("testdata/x.cpp")
	be.Err(t, err, nil)
	be.Equal(t, filepath.IsAbs(fullPath), true)
	be.Equal(t, filepath.Base(fullPath), "x.cpp")
	be.Equal(t, parentDir, filepath.Dir(fullPath))
}

func TestGetPathInfoOnAlreadyAbsolutePath(t *testing.T) {
	fullPath, _, err := GetPathInfo("/tmp/a/b.cpp")
	be.Err(t, err, nil)
	be.Equal(t, fullPath, "/tmp/a/b.cpp")
}
