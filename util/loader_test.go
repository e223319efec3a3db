package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"leaf-03.JPG":  "c",
		"leaf-01.png":  "a",
		"leaf-02.webp": "b",
		"notes.txt":    "skip",
		"leaf-04.bmp":  "d",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o700))

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, images, 4)

	names := make([]string, 0, len(images))
	for _, image := range images {
		names = append(names, image.Name)
		assert.Equal(t, filepath.Join(dir, image.Name), image.Path)
		assert.Equal(t, files[image.Name], string(image.Data))
	}
	assert.Equal(t, []string{"leaf-01.png", "leaf-02.webp", "leaf-03.JPG", "leaf-04.bmp"}, names)
}

func TestLoadDirectoryImages_MissingDir(t *testing.T) {
	_, err := LoadDirectoryImageFiles(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.jpeg"))
	assert.True(t, IsImageFile("B.PNG"))
	assert.False(t, IsImageFile("a.gif"))
	assert.False(t, IsImageFile("jpg"))
}
