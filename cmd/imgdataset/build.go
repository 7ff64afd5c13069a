package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"imgdataset/pkg/checkpoint"
	"imgdataset/pkg/config"
	"imgdataset/pkg/crawler"
	"imgdataset/pkg/dataset"
	"imgdataset/pkg/logger"
	"imgdataset/pkg/models"
	"imgdataset/pkg/ui"
)

var (
	// Build command flags
	categories      []string
	rootDir         string
	maxNum          int
	offset          string
	concurrent      int
	rateLimit       int
	maxRetries      int
	downloadTimeout int
	resumeBuild     bool
	forceRestart    bool
	writeMetadata   bool
	keepCheckpoints bool
	notify          bool
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Download images for every category",
	Long: `Create the dataset root and one directory per category, then fill each
directory with up to --max-num images found for the category keyword.

Categories are processed one after another in the configured order. The first
failure stops the build; images already stored are kept.`,
	Example: `  # Build the default categories into ./dataset
  imgdataset build

  # Custom categories, 200 images each
  imgdataset build --category mugs="coffee mug" --category cups="paper cup" --max-num 200

  # Continue numbering after the files already present
  imgdataset build --offset auto

  # Resume an interrupted build
  imgdataset build --resume`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringArrayVar(&categories, "category", nil, "category as folder=keyword (repeatable)")
	buildCmd.Flags().StringVarP(&rootDir, "root", "o", "", "dataset root directory (default: dataset)")
	buildCmd.Flags().IntVarP(&maxNum, "max-num", "n", 0, "maximum number of images per category (default: 500)")
	buildCmd.Flags().StringVar(&offset, "offset", "", "file index offset, or auto to continue after existing files")
	buildCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	buildCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per minute")
	buildCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "maximum number of retries per request")
	buildCmd.Flags().IntVar(&downloadTimeout, "download-timeout", 30, "download timeout in seconds")
	buildCmd.Flags().BoolVar(&resumeBuild, "resume", false, "resume from the last checkpoint")
	buildCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "ignore and delete existing checkpoints")
	buildCmd.Flags().BoolVar(&writeMetadata, "metadata", false, "write metadata.json into every category directory")
	buildCmd.Flags().BoolVar(&keepCheckpoints, "keep-checkpoints", false, "keep checkpoints after a successful build")
	buildCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when the build ends")

	buildCmd.MarkFlagsMutuallyExclusive("resume", "force-restart")
}

// buildFlags collects the flags set on the command line
func buildFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("category") {
		flags["category"] = categories
	}
	if changed("root") {
		flags["root"] = rootDir
	}
	if changed("max-num") {
		flags["max-num"] = maxNum
	}
	if changed("offset") {
		flags["offset"] = offset
	}
	if changed("concurrent") {
		flags["concurrent"] = concurrent
	}
	if changed("rate-limit") {
		flags["rate-limit"] = rateLimit
	}
	if changed("max-retries") {
		flags["max-retries"] = maxRetries
	}
	if changed("download-timeout") {
		flags["download-timeout"] = downloadTimeout
	}
	if changed("metadata") {
		flags["metadata"] = writeMetadata
	}
	if changed("keep-checkpoints") {
		flags["keep-checkpoints"] = keepCheckpoints
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, buildFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger().WithFields(map[string]interface{}{
		"run_id":  uuid.NewString(),
		"version": version,
	})
	log.Info("imgdataset starting")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printPlan(cfg)

	opts := crawler.OptionsFromConfig(cfg)
	opts.Resume = resumeBuild
	opts.ForceRestart = forceRestart
	debug := strings.EqualFold(cfg.Logging.Level, "debug")
	opts.Progress = func(folder string, requested int) crawler.Progress {
		return ui.NewProgressDisplay(folder, requested, debug)
	}

	builder := dataset.NewBuilder(dataset.Options{
		Root:       cfg.Dataset.Root,
		Categories: cfg.Dataset.Categories,
		MaxCount:   cfg.Dataset.MaxNum,
		StartIndex: cfg.Dataset.FileIdxOffset,
	}, crawler.NewFromConfig(cfg, opts, log), log)

	tracker := ui.NewStatusTracker(len(cfg.Dataset.Categories))
	builder.SetObserver(&statusObserver{tracker: tracker})

	report, err := builder.Run(ctx)
	tracker.PrintSummary()
	if err != nil {
		log.WithError(err).Error("Build failed")
		if notify {
			if nerr := ui.NewNotifier().SendError("imgdataset build failed", err.Error()); nerr != nil {
				log.WithError(nerr).Debug("Notification not sent")
			}
		}
		if errors.Is(err, context.Canceled) {
			ui.PrintWarning("Build interrupted", "run again with --resume to continue")
		}
		return err
	}

	log.InfoWithFields("Build completed", map[string]interface{}{
		"downloaded": report.Downloaded(),
		"categories": len(report.Categories),
		"duration":   report.Duration,
	})

	if !cfg.Output.KeepCheckpoints {
		removeCheckpoints(builder, cfg.Dataset.Categories, log)
	}

	ui.PrintSuccess(fmt.Sprintf("Dataset ready in %s", cfg.Dataset.Root))
	if notify {
		msg := fmt.Sprintf("%d images in %d categories", report.Downloaded(), len(report.Categories))
		if err := ui.NewNotifier().SendSuccess("imgdataset build complete", msg); err != nil {
			log.WithError(err).Debug("Notification not sent")
		}
	}
	return nil
}

func printPlan(cfg *config.Config) {
	ui.PrintInfo("Dataset root", cfg.Dataset.Root)
	ui.PrintInfo("Categories", fmt.Sprintf("%d", len(cfg.Dataset.Categories)))
	ui.PrintInfo("Images per category", fmt.Sprintf("%d", cfg.Dataset.MaxNum))
	if cfg.Dataset.FileIdxOffset == config.AutoOffset {
		ui.PrintInfo("File index offset", "auto")
	} else {
		ui.PrintInfo("File index offset", fmt.Sprintf("%d", cfg.Dataset.FileIdxOffset))
	}
}

// removeCheckpoints deletes the checkpoints of a finished build
func removeCheckpoints(builder *dataset.Builder, cats []models.CategorySpec, log logger.Logger) {
	for _, cat := range cats {
		mgr, err := checkpoint.NewManager(cat.Folder, builder.CategoryDir(cat.Folder))
		if err != nil {
			log.WithError(err).Warn("Checkpoints unavailable")
			return
		}
		if err := mgr.Delete(); err != nil {
			log.WithError(err).WithField("folder", cat.Folder).Warn("Failed to delete checkpoint")
		}
	}
}

// statusObserver reports category events on the terminal
type statusObserver struct {
	tracker *ui.StatusTracker
}

func (o *statusObserver) CategoryStarted(cat models.CategorySpec) {
	o.tracker.StartCategory(cat.Folder, cat.Keyword)
}

func (o *statusObserver) CategoryFinished(cat models.CategorySpec, summary *models.FetchSummary, err error) {
	result := ui.CategoryResult{Folder: cat.Folder}
	if summary != nil {
		result.Downloaded = summary.Downloaded
		result.Requested = summary.Requested
		result.Failed = summary.Failed
		result.Duration = summary.Duration
	}
	o.tracker.FinishCategory(result)
}
