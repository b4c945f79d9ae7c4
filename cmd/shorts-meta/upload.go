package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fpang/shorts-media-helper/internal/cli"
	"github.com/fpang/shorts-media-helper/internal/filehandler"
	"github.com/fpang/shorts-media-helper/internal/geocode"
	"github.com/fpang/shorts-media-helper/internal/jobs"
	"github.com/fpang/shorts-media-helper/internal/shortsapi"
	"github.com/fpang/shorts-media-helper/internal/upload"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	apiURLFlag   string
	nameFlag     string
	titleFlag    string
	weatherFlag  string
	themeFlag    string
	seasonFlag   string
	hashtagsFlag []string
	spotFlag     string
	yesFlag      bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a clip to the shorts backend",
	Long: `Upload validates a clip (MP4 or MOV, at most 500 MB), extracts its metadata
and thumbnail, suggests the nearest attraction and the season, then uploads the
video and thumbnail and registers the short.

Details not given as flags are asked for interactively unless --yes is set.
--spot takes an attraction content ID, or "none" to upload without one.

Examples:
  shorts-meta upload clip.mov --name minji --title "Haeundae at dusk" --theme OCEAN
  shorts-meta upload clip.mp4 --hashtag busan --hashtag "#beach" --spot none --yes`,
	Args: cobra.MaximumNArgs(1),
	Run:  runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&apiURLFlag, "api-url", "", "Shorts backend base URL (default $SHORTS_API_URL or "+shortsapi.DefaultBaseURL+")")
	uploadCmd.Flags().StringVar(&nameFlag, "name", "", "Uploader display name")
	uploadCmd.Flags().StringVar(&titleFlag, "title", "", "Short title")
	uploadCmd.Flags().StringVar(&weatherFlag, "weather", "", "SUNNY, CLOUDY, RAINY or SNOWY")
	uploadCmd.Flags().StringVar(&themeFlag, "theme", "", "NIGHT_VIEW, OCEAN, MOUNTAIN, CAFE, FOOD, FESTIVAL or WALK")
	uploadCmd.Flags().StringVar(&seasonFlag, "season", "", "SPRING, SUMMER, AUTUMN or WINTER (default from capture date)")
	uploadCmd.Flags().StringArrayVar(&hashtagsFlag, "hashtag", nil, "Hashtag, repeatable")
	uploadCmd.Flags().StringVar(&spotFlag, "spot", "", "Attraction content ID, or none (default nearest)")
	uploadCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Do not prompt; fail if name or title is missing")
}

func runUpload(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	uploadID := jobs.GenerateID("upload-")
	logger := log.With().Str("uploadId", uploadID).Logger()

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		picked, err := cli.PickVideoFile()
		if errors.Is(err, cli.ErrCanceled) {
			logger.Info().Msg("No file selected")
			return
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("Provide a file argument when no desktop file picker is available")
		}
		path = picked
	}

	var geocoder geocode.Resolver
	if k := cli.InitGeocoder(ctx); k != nil {
		geocoder = k
	}

	api := shortsapi.NewClient(apiURLFlag)
	flow := upload.New(api, newExtractor(), geocoder)

	draft, err := flow.Prepare(ctx, path)
	if err != nil {
		switch {
		case errors.Is(err, filehandler.ErrUnsupportedType), errors.Is(err, filehandler.ErrFileTooLarge):
			logger.Fatal().Err(err).Msg("File cannot be uploaded")
		case errors.Is(err, upload.ErrUnreadable):
			logger.Fatal().Err(err).Msg("File could not be processed")
		default:
			logger.Fatal().Err(err).Msg("Failed to prepare upload")
		}
	}
	printDraft(draft)

	details := collectDetails(draft)

	fmt.Fprintln(os.Stderr)
	resp, err := flow.Submit(ctx, draft, details, func(p int) {
		fmt.Fprintf(os.Stderr, "\rUploading... %3d%%", p)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		var apiErr *shortsapi.APIError
		if errors.As(err, &apiErr) {
			logger.Fatal().Err(err).Int("statusCode", apiErr.StatusCode).Msg("Upload rejected")
		}
		logger.Fatal().Err(err).Msg("Upload failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write output")
	}
}

// printDraft shows what was extracted so the user can fill in the rest.
func printDraft(d *upload.Draft) {
	m := d.Metadata
	w := os.Stderr
	fmt.Fprintln(w, "============================================")
	fmt.Fprintf(w, "File:       %s (%s)\n", d.File.Name(), humanize.IBytes(uint64(d.File.Size)))
	fmt.Fprintf(w, "Duration:   %s\n", cli.FormatSeconds(m.Duration))
	fmt.Fprintf(w, "Resolution: %dx%d\n", m.Width, m.Height)
	if m.CreatedAt != "" {
		fmt.Fprintf(w, "Captured:   %s (%s)\n", m.CreatedAt, m.CreatedAtSource)
	}
	if m.HasGPS() {
		fmt.Fprintf(w, "Location:   %s\n", d.Address)
		fmt.Fprintf(w, "            %s\n", filehandler.CoordinatesToDMS(m.GPS()))
	} else {
		fmt.Fprintln(w, "Location:   no GPS data in this clip")
	}
	if d.Thumbnail == nil {
		fmt.Fprintln(w, "Thumbnail:  unavailable")
	}
	for i, s := range d.Spots {
		marker := " "
		if d.Spot != nil && s.ContentID == d.Spot.ContentID {
			marker = "*"
		}
		fmt.Fprintf(w, "  %s [%d] %s (%s)\n", marker, s.ContentID, s.Title, formatDistance(s.Distance))
		if i == 9 && len(d.Spots) > 10 {
			fmt.Fprintf(w, "    ... %d more\n", len(d.Spots)-10)
			break
		}
	}
	fmt.Fprintln(w, "============================================")
}

func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// collectDetails merges flags with interactive answers.
func collectDetails(d *upload.Draft) upload.Details {
	var p *cli.Prompter
	ask := func(label, current, def string) string {
		if current != "" || yesFlag {
			return current
		}
		if p == nil {
			p = cli.NewPrompter()
		}
		return p.Ask(label, def)
	}

	det := upload.Details{
		Name:     ask("Name", nameFlag, ""),
		Title:    ask("Title", titleFlag, ""),
		Hashtags: hashtagsFlag,
	}

	var err error
	if det.Weather, err = shortsapi.ParseWeather(ask("Weather (SUNNY/CLOUDY/RAINY/SNOWY)", weatherFlag, "")); err != nil {
		log.Fatal().Err(err).Msg("Invalid weather")
	}
	if det.Theme, err = shortsapi.ParseTheme(ask("Theme (NIGHT_VIEW/OCEAN/MOUNTAIN/CAFE/FOOD/FESTIVAL/WALK)", themeFlag, "")); err != nil {
		log.Fatal().Err(err).Msg("Invalid theme")
	}
	if det.Season, err = shortsapi.ParseSeason(ask("Season", seasonFlag, string(d.Season))); err != nil {
		log.Fatal().Err(err).Msg("Invalid season")
	}
	if len(det.Hashtags) == 0 && !yesFlag {
		if raw := ask("Hashtags (comma separated)", "", ""); raw != "" {
			det.Hashtags = strings.Split(raw, ",")
		}
	}

	spot := spotFlag
	if spot == "" && len(d.Spots) > 0 && !yesFlag {
		def := ""
		if d.Spot != nil {
			def = strconv.FormatInt(d.Spot.ContentID, 10)
		}
		spot = ask("Spot content ID (or none)", "", def)
	}
	switch {
	case strings.EqualFold(spot, "none"):
		det.NoSpot = true
	case spot != "":
		id, err := strconv.ParseInt(spot, 10, 64)
		if err != nil {
			log.Fatal().Err(err).Str("spot", spot).Msg("Invalid spot content ID")
		}
		det.SpotID = id
	}
	return det
}
