package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgdataset/pkg/checkpoint"
	"imgdataset/pkg/dataset"
	"imgdataset/pkg/logger"
	"imgdataset/pkg/models"
	"imgdataset/pkg/ui"
)

func TestBuildFlagsOnlyChanged(t *testing.T) {
	cmd := buildCmd
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		categories, rootDir, offset, maxNum = nil, "", "", 0
	})

	require.NoError(t, cmd.Flags().Parse([]string{
		"--category", "mugs=coffee mug",
		"--category", "cups=paper cup",
		"--max-num", "20",
		"--offset", "auto",
	}))

	flags := buildFlags(cmd)
	assert.Equal(t, []string{"mugs=coffee mug", "cups=paper cup"}, flags["category"])
	assert.Equal(t, 20, flags["max-num"])
	assert.Equal(t, "auto", flags["offset"])
	assert.NotContains(t, flags, "root")
	assert.NotContains(t, flags, "concurrent")
	assert.NotContains(t, flags, "metadata")
}

func TestStatusObserver(t *testing.T) {
	tracker := ui.NewStatusTracker(2)
	obs := &statusObserver{tracker: tracker}
	cat := models.CategorySpec{Folder: "cups", Keyword: "paper cup"}

	obs.CategoryStarted(cat)
	obs.CategoryFinished(cat, &models.FetchSummary{Requested: 5, Downloaded: 4, Failed: 1}, nil)
	obs.CategoryFinished(models.CategorySpec{Folder: "cans"}, nil, errors.New("boom"))

	require.Len(t, tracker.Results, 2)
	assert.Equal(t, ui.CategoryResult{Folder: "cups", Requested: 5, Downloaded: 4, Failed: 1}, tracker.Results[0])
	assert.Equal(t, "cans", tracker.Results[1].Folder)
	assert.Equal(t, 4, tracker.GetDownloadedCount())
}

func TestRemoveCheckpointsKeepsOtherRoots(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	cats := []models.CategorySpec{{Folder: "cups", Keyword: "paper cup"}}

	built := dataset.NewBuilder(dataset.Options{Root: filepath.Join(t.TempDir(), "built")}, nil, logger.NewNopLogger())
	otherDir := filepath.Join(t.TempDir(), "other", "cups")

	own, err := checkpoint.NewManager("cups", built.CategoryDir("cups"))
	require.NoError(t, err)
	_, err = own.Create("cups", "paper cup", built.CategoryDir("cups"), 1)
	require.NoError(t, err)

	other, err := checkpoint.NewManager("cups", otherDir)
	require.NoError(t, err)
	_, err = other.Create("cups", "paper cup", otherDir, 4)
	require.NoError(t, err)

	removeCheckpoints(built, cats, logger.NewNopLogger())

	assert.False(t, own.Exists())
	assert.True(t, other.Exists())
}
