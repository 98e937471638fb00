package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/resq-grid/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveType(t *testing.T) {
	assert.Equal(t, domain.TypeMedical, resolveType("medical"))
	assert.Equal(t, domain.TypeCrime, resolveType("Crime"))
	assert.Equal(t, domain.TypeFire, resolveType("🔥 Fire"))
	assert.Equal(t, "Gas Leak", resolveType("Gas Leak"))
}

func TestLoadEvidence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.png")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, os.WriteFile(path, png, 0o600))

	ev, err := loadEvidence(path)
	require.NoError(t, err)
	assert.Equal(t, "scene.png", ev.Filename)
	assert.Equal(t, "image/png", ev.ContentType)
	assert.Equal(t, png, ev.Data)

	_, err = loadEvidence(filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
}
