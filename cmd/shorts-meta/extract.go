package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"

	"github.com/fpang/shorts-media-helper/internal/cli"
	"github.com/fpang/shorts-media-helper/internal/extractor"
	"github.com/fpang/shorts-media-helper/internal/filehandler"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	thumbnailFileFlag string
	dataURIFlag       bool
	noThumbnailFlag   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Print a clip's metadata as JSON",
	Long: `Extract probes a clip and prints its metadata as one JSON object on stdout.
Without a file argument a native file picker is opened.

The thumbnail is optional: a failure to capture it is reported in
"thumbnailError" and does not fail the command.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&thumbnailFileFlag, "thumbnail", "t", "", "Write the JPEG thumbnail to this file")
	extractCmd.Flags().BoolVar(&dataURIFlag, "data-uri", false, "Include the thumbnail as a data URI in the JSON output")
	extractCmd.Flags().BoolVar(&noThumbnailFlag, "no-thumbnail", false, "Skip thumbnail capture")
}

// extractOutput is the JSON printed by the extract command.
type extractOutput struct {
	File string `json:"file"`
	*extractor.VideoMetadata
	Thumbnail      *thumbnailOutput `json:"thumbnail,omitempty"`
	ThumbnailError string           `json:"thumbnailError,omitempty"`
}

type thumbnailOutput struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bytes   int    `json:"bytes"`
	File    string `json:"file,omitempty"`
	DataURI string `json:"dataUri,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		picked, err := cli.PickVideoFile()
		if errors.Is(err, cli.ErrCanceled) {
			log.Info().Msg("No file selected")
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Provide a file argument when no desktop file picker is available")
		}
		path = picked
	}

	mf, err := filehandler.LoadMediaFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load video")
	}

	ex := newExtractor()
	out := extractOutput{File: mf.Path}

	if noThumbnailFlag {
		out.VideoMetadata, err = ex.Metadata(ctx, mf)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("File could not be processed")
		}
	} else {
		res, err := ex.Extract(ctx, mf)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("File could not be processed")
		}
		out.VideoMetadata = res.Metadata
		if res.ThumbnailErr != nil {
			out.ThumbnailError = res.ThumbnailErr.Error()
		}
		if res.Thumbnail != nil {
			out.Thumbnail = describeThumbnail(res.Thumbnail)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

// describeThumbnail writes the thumbnail file when requested and builds its JSON summary.
func describeThumbnail(thumb *filehandler.Thumbnail) *thumbnailOutput {
	to := &thumbnailOutput{Width: thumb.Width, Height: thumb.Height, Bytes: len(thumb.Data)}
	if thumbnailFileFlag != "" {
		if err := os.WriteFile(thumbnailFileFlag, thumb.Data, 0o644); err != nil {
			log.Fatal().Err(err).Str("path", thumbnailFileFlag).Msg("Failed to write thumbnail")
		}
		to.File = thumbnailFileFlag
		log.Info().Str("path", thumbnailFileFlag).Msg("Thumbnail written")
	}
	if dataURIFlag {
		to.DataURI = thumb.DataURI()
	}
	return to
}
