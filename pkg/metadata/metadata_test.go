package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
}

func TestWriterFlushAndLoad(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(dir, "paper_cup", "paper cup")
	require.NoError(t, err)

	w.Add(ImageMetadata{Filename: "000002.png", URL: "https://x/2.png", Width: 640, Height: 480})
	w.Add(ImageMetadata{Filename: "000001.jpg", URL: "https://x/1.jpg", Width: 100, Height: 100})
	w.Add(ImageMetadata{Filename: "000001.jpg", URL: "https://x/1b.jpg"})
	assert.Equal(t, 2, w.Len())
	require.NoError(t, w.Flush())

	index, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "paper_cup", index.Folder)
	assert.Equal(t, "paper cup", index.Keyword)
	require.Len(t, index.Images, 2)
	assert.Equal(t, "000001.jpg", index.Images[0].Filename)
	assert.Equal(t, "https://x/1b.jpg", index.Images[0].URL)
	assert.False(t, index.UpdatedAt.IsZero())

	assert.NoFileExists(t, w.Path()+".tmp")
}

func TestOpenMergesExistingRecords(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "000001.jpg")

	w, err := Open(dir, "cans", "aluminum can")
	require.NoError(t, err)
	w.Add(ImageMetadata{Filename: "000001.jpg", URL: "https://x/1.jpg"})
	w.Add(ImageMetadata{Filename: "000002.jpg", URL: "https://x/2.jpg"}) // file never written
	require.NoError(t, w.Flush())

	reopened, err := Open(dir, "cans", "aluminum can")
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestOpenCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("[oops"), 0644))

	_, err := Open(dir, "cans", "aluminum can")
	assert.Error(t, err)
}

func TestGetAspectRatio(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{1920, 1080, "16:9"},
		{800, 600, "4:3"},
		{500, 500, "1:1"},
		{1080, 1920, "9:16"},
		{300, 400, "3:4"},
		{300, 100, "3.00:1"},
		{0, 100, "unknown"},
	}

	for _, tt := range tests {
		m := ImageMetadata{Width: tt.w, Height: tt.h}
		assert.Equal(t, tt.want, m.GetAspectRatio())
	}
}
