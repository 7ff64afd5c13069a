package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointManager(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tempDir)
	t.Setenv("APPDATA", tempDir)

	folder := "paper_cup"
	keyword := "paper cup isolated white background"
	dest := filepath.Join("dataset", folder)

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager(folder, dest)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create(folder, keyword, dest, 1)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.Version != CurrentVersion {
			t.Errorf("Expected version %d, got %d", CurrentVersion, cp.Version)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.Keyword != keyword || loaded.NextIndex != 1 {
			t.Errorf("Loaded checkpoint mismatch: %+v", loaded)
		}
		if !loaded.Matches(keyword, dest+"/") {
			t.Error("Expected checkpoint to match its own crawl")
		}
		if loaded.Matches("other keyword", dest) {
			t.Error("Expected checkpoint not to match another keyword")
		}
	})

	t.Run("UpdateProgressAndRecordDownload", func(t *testing.T) {
		mgr, err := NewManager(folder, dest)
		require.NoError(t, err)

		cp, err := mgr.Create(folder, keyword, dest, 1)
		require.NoError(t, err)

		require.NoError(t, mgr.RecordDownload(cp, "https://img.example/1.jpg", "000001.jpg", 1))
		require.NoError(t, mgr.RecordDownload(cp, "https://img.example/2.png", "000002.png", 2))
		require.NoError(t, mgr.UpdateProgress(cp, 35, 1))

		loaded, err := mgr.Load()
		require.NoError(t, err)
		assert.Equal(t, 35, loaded.Offset)
		assert.Equal(t, 1, loaded.Pages)
		assert.Equal(t, 2, loaded.TotalDownloaded)
		assert.Equal(t, 3, loaded.NextIndex)
		assert.True(t, loaded.IsDownloaded("https://img.example/2.png"))
		assert.False(t, loaded.IsDownloaded("https://img.example/3.jpg"))
		assert.False(t, loaded.Completed)

		require.NoError(t, mgr.MarkCompleted(loaded))
		again, err := mgr.Load()
		require.NoError(t, err)
		assert.True(t, again.Completed)
	})

	t.Run("DeleteCheckpoint", func(t *testing.T) {
		mgr, err := NewManager(folder, dest)
		require.NoError(t, err)

		_, err = mgr.Create(folder, keyword, dest, 1)
		require.NoError(t, err)
		assert.True(t, mgr.Exists())

		require.NoError(t, mgr.Delete())
		assert.False(t, mgr.Exists())

		// Deleting twice is fine
		assert.NoError(t, mgr.Delete())

		loaded, err := mgr.Load()
		assert.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SeparateFilesPerFolder", func(t *testing.T) {
		cups, err := NewManager("paper_cup", filepath.Join("dataset", "paper_cup"))
		require.NoError(t, err)
		cans, err := NewManager("aluminum_can", filepath.Join("dataset", "aluminum_can"))
		require.NoError(t, err)

		assert.NotEqual(t, cups.Path(), cans.Path())
		assert.True(t, strings.HasPrefix(filepath.Base(cans.Path()), "aluminum_can-"))
		assert.True(t, strings.HasSuffix(cans.Path(), ".checkpoint.json"))
	})

	t.Run("SeparateFilesPerRoot", func(t *testing.T) {
		first, err := NewManager(folder, filepath.Join("first", folder))
		require.NoError(t, err)
		second, err := NewManager(folder, filepath.Join("second", folder))
		require.NoError(t, err)
		require.NotEqual(t, first.Path(), second.Path())

		_, err = first.Create(folder, keyword, filepath.Join("first", folder), 1)
		require.NoError(t, err)
		_, err = second.Create(folder, keyword, filepath.Join("second", folder), 9)
		require.NoError(t, err)

		require.NoError(t, second.Delete())
		assert.True(t, first.Exists())
		loaded, err := first.Load()
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.NextIndex)
	})

	t.Run("RelativeAndAbsoluteDestinationsShareFile", func(t *testing.T) {
		rel, err := NewManager(folder, dest)
		require.NoError(t, err)
		abs, err := filepath.Abs(dest)
		require.NoError(t, err)
		absMgr, err := NewManager(folder, abs+string(filepath.Separator))
		require.NoError(t, err)
		assert.Equal(t, rel.Path(), absMgr.Path())
	})
}

func TestLoadRejectsCorruptAndFutureCheckpoints(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	mgr, err := NewManager("bottles", filepath.Join("dataset", "bottles"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(mgr.Path(), []byte("{not json"), 0644))
	_, err = mgr.Load()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(mgr.Path(), []byte(`{"folder":"bottles","version":99}`), 0644))
	_, err = mgr.Load()
	assert.ErrorContains(t, err, "newer than supported")

	require.NoError(t, os.WriteFile(mgr.Path(), []byte(`{"folder":"bottles","version":1}`), 0644))
	cp, err := mgr.Load()
	require.NoError(t, err)
	assert.NotNil(t, cp.Downloaded)
}
