// Package main is the shorts-meta CLI: inspect clips the way the upload page
// does, batch-scan a directory, and run the whole upload from a terminal.
package main

import (
	"os"

	"github.com/fpang/shorts-media-helper/internal/atom"
	"github.com/fpang/shorts-media-helper/internal/extractor"
	"github.com/fpang/shorts-media-helper/internal/filehandler"
	"github.com/fpang/shorts-media-helper/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Persistent flags
var (
	scanModeFlag     string
	maxDimensionFlag int
)

// rootCmd is the main Cobra command for the shorts-meta CLI.
var rootCmd = &cobra.Command{
	Use:   "shorts-meta",
	Short: "Video metadata, thumbnails and uploads for travel shorts",
	Long: `shorts-meta reads the capture date, GPS location, duration and size of
MP4/MOV clips, captures a preview thumbnail, and uploads clips to the shorts
backend.

Capture time comes from the QuickTime creation date when present, then the
movie header, then the file's modification time.

Examples:
  shorts-meta extract clip.mov
  shorts-meta extract clip.mov --thumbnail preview.jpg
  shorts-meta scan -d ~/Movies/jeju --workers 4
  shorts-meta upload clip.mov --name minji --title "Jeju sunrise" --theme OCEAN`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&scanModeFlag, "scan-mode", "linear", "How metadata atoms are located: linear (byte search) or structured (box walk)")
	rootCmd.PersistentFlags().IntVar(&maxDimensionFlag, "max-dimension", 0, "Cap the thumbnail's longer side in pixels (0 = native size)")

	rootCmd.AddCommand(extractCmd, scanCmd, uploadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newExtractor builds the extractor from the persistent flags.
func newExtractor() *extractor.Extractor {
	mode, err := atom.ParseMode(scanModeFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --scan-mode")
	}
	if err := filehandler.CheckTools(); err != nil {
		log.Warn().Err(err).Msg("Thumbnails and the ffprobe fallback are unavailable")
	}
	return extractor.New(
		filehandler.DefaultProber(),
		filehandler.FFmpegThumbnailer{MaxDimension: maxDimensionFlag},
		extractor.WithScanMode(mode),
	)
}
