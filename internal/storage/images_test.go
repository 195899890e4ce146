package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave(t *testing.T) {
	store, err := NewImageStore(t.TempDir(), "https://host/images/")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "u1", "sunset.jpg", "image/jpeg", []byte("pixels"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://host/images/u1/"), "got %s", url)
	assert.True(t, strings.HasSuffix(url, ".jpg"))
	assert.NotContains(t, url, "sunset", "client filename must not appear in the URL")
}

func TestSave_WritesFile(t *testing.T) {
	root := t.TempDir()
	store, err := NewImageStore(root, "https://host/images")
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "u1", "a.png", "image/png", []byte("pixels"))
	require.NoError(t, err)

	name := url[strings.LastIndex(url, "/")+1:]
	data, err := os.ReadFile(filepath.Join(root, "u1", name))
	require.NoError(t, err)
	assert.Equal(t, []byte("pixels"), data)
}

func TestSave_RejectsUnknownContentType(t *testing.T) {
	store, err := NewImageStore(t.TempDir(), "https://host/images")
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "u1", "a.gif", "image/gif", []byte("pixels"))
	require.Error(t, err)
}

func TestSave_UniqueNames(t *testing.T) {
	store, err := NewImageStore(t.TempDir(), "https://host/images")
	require.NoError(t, err)

	a, err := store.Save(context.Background(), "u1", "same.jpg", "image/jpeg", []byte("1"))
	require.NoError(t, err)
	b, err := store.Save(context.Background(), "u1", "same.jpg", "image/jpeg", []byte("2"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
