package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ImageStore {
	t.Helper()
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveAndLoadImage(t *testing.T) {
	store := newTestStore(t)

	webPath, err := store.SaveImage([]byte("png-bytes"), "characters", "hero.png")
	require.NoError(t, err)
	assert.Equal(t, "/assets/characters/hero.png", webPath)

	data, err := store.Load(webPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestSaveImageNestedFolders(t *testing.T) {
	store := newTestStore(t)

	webPath, err := store.SaveImage([]byte("frame"), "7", "frames", "run-cycle", "frame_0.png")
	require.NoError(t, err)
	assert.Equal(t, "/assets/7/frames/run-cycle/frame_0.png", webPath)

	_, err = os.Stat(filepath.Join(store.BaseDir(), "7", "frames", "run-cycle", "frame_0.png"))
	assert.NoError(t, err)
}

func TestRemoveImage(t *testing.T) {
	store := newTestStore(t)

	webPath, err := store.SaveImage([]byte("x"), "sprites", "a.png")
	require.NoError(t, err)

	require.NoError(t, store.Remove(webPath))
	_, err = store.Load(webPath)
	assert.Error(t, err)

	// removing a missing file is not an error
	assert.NoError(t, store.Remove(webPath))
}

func TestFullPathRejectsEscapes(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FullPath("/assets/../etc/passwd")
	assert.Error(t, err)

	_, err = store.FullPath("/assets/characters/../../secrets.txt")
	assert.Error(t, err)

	_, err = store.FullPath("/assets/characters/ok.png")
	assert.NoError(t, err)
}

func TestListFolder(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SaveImage([]byte("a"), "characters", "a.png")
	require.NoError(t, err)
	_, err = store.SaveImage([]byte("b"), "characters", "b.png")
	require.NoError(t, err)

	images, err := store.ListFolder("characters")
	require.NoError(t, err)
	require.Len(t, images, 2)
	for _, img := range images {
		assert.NotEmpty(t, img.Filename)
		assert.Contains(t, img.URL, "/assets/characters/")
	}

	// unknown folders list as empty rather than failing
	empty, err := store.ListFolder("does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "run-cycle", Slugify("Run Cycle"))
	assert.Equal(t, "heros-jump-2", Slugify("Hero's Jump #2!"))
	assert.Equal(t, "abc", Slugify("--abc--"))
	assert.Equal(t, "", Slugify("!!!"))
}
