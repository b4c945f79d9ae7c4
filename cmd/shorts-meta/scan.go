package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fpang/shorts-media-helper/internal/cli"
	"github.com/fpang/shorts-media-helper/internal/extractor"
	"github.com/fpang/shorts-media-helper/internal/filehandler"
	"github.com/fpang/shorts-media-helper/internal/jobs"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	directoryFlag string
	maxDepthFlag  int
	limitFlag     int
	workersFlag   int
	jsonFlag      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Extract metadata for every MP4/MOV clip in a directory",
	Long: `Scan walks a directory, extracts metadata for every supported clip using a
pool of workers, and prints a table on a terminal or one JSON object per line
otherwise. Unreadable clips are listed with their error and do not stop the scan.

Examples:
  shorts-meta scan -d ~/Movies/busan
  shorts-meta scan -d . --max-depth 1 --limit 20 --json > clips.jsonl`,
	Run: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&directoryFlag, "directory", "d", ".", "Directory containing clips")
	scanCmd.Flags().IntVar(&maxDepthFlag, "max-depth", 0, "Maximum recursion depth (0 = unlimited)")
	scanCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum clips to process (0 = unlimited)")
	scanCmd.Flags().IntVarP(&workersFlag, "workers", "w", runtime.NumCPU(), "Clips processed in parallel")
	scanCmd.Flags().BoolVar(&jsonFlag, "json", false, "Always print JSON lines, even on a terminal")
}

// scanRow is one clip's outcome.
type scanRow struct {
	File string `json:"file"`
	Size int64  `json:"size"`
	*extractor.VideoMetadata
	Error string `json:"error,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dirPath := cli.ValidateAndResolveDirectory(directoryFlag)
	runID := jobs.GenerateID("scan-")
	logger := log.With().Str("runId", runID).Logger()

	files, err := filehandler.ScanDirectoryVideos(dirPath, filehandler.ScanOptions{
		MaxDepth: maxDepthFlag,
		Limit:    limitFlag,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("path", dirPath).Msg("Failed to scan directory")
	}
	if len(files) == 0 {
		logger.Warn().Str("path", dirPath).Msg("No MP4 or MOV clips found")
		return
	}

	start := time.Now()
	logger.Info().
		Str("path", dirPath).
		Int("clips", len(files)).
		Int("workers", workersFlag).
		Str("scanMode", scanModeFlag).
		Msg("Starting metadata scan")

	rows := scanFiles(ctx, newExtractor(), files, workersFlag)

	failed := 0
	for _, r := range rows {
		if r.Error != "" {
			failed++
		}
	}
	logger.Info().
		Int("clips", len(rows)).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("Metadata scan complete")

	if !jsonFlag && isTerminal(os.Stdout) {
		fmt.Println(renderScanTable(rows))
		return
	}
	if err := writeJSONLines(os.Stdout, rows); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write output")
	}
}

// scanFiles extracts metadata with at most workers goroutines. Rows keep the
// order of files. Per-file failures are recorded, never returned.
func scanFiles(ctx context.Context, ex *extractor.Extractor, files []*filehandler.MediaFile, workers int) []scanRow {
	rows := make([]scanRow, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))

	for i, mf := range files {
		g.Go(func() error {
			rows[i] = scanRow{File: mf.Path, Size: mf.Size}
			if err := gctx.Err(); err != nil {
				rows[i].Error = err.Error()
				return nil
			}
			meta, err := ex.Metadata(gctx, mf)
			if err != nil {
				log.Warn().Err(err).Str("path", mf.Path).Msg("Clip could not be processed")
				rows[i].Error = err.Error()
				return nil
			}
			rows[i].VideoMetadata = meta
			return nil
		})
	}
	g.Wait()
	return rows
}

func writeJSONLines(w io.Writer, rows []scanRow) error {
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func renderScanTable(rows []scanRow) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"File", "Size", "Duration", "Resolution", "Created", "Source", "Location"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	for _, r := range rows {
		name := relName(r.File)
		size := humanize.IBytes(uint64(r.Size))
		if r.VideoMetadata == nil {
			tw.AppendRow(table.Row{name, size, "-", "-", "-", "-", "error: " + truncateCell(r.Error, 60)})
			continue
		}
		m := r.VideoMetadata
		location := "-"
		if m.HasGPS() {
			location = filehandler.CoordinatesToDMS(m.GPS())
		}
		created, source := "-", "-"
		if m.CreatedAt != "" {
			created, source = m.CreatedAt, string(m.CreatedAtSource)
		}
		tw.AppendRow(table.Row{
			name,
			size,
			cli.FormatSeconds(m.Duration),
			fmt.Sprintf("%dx%d", m.Width, m.Height),
			created,
			source,
			location,
		})
	}
	return tw.Render()
}

func relName(path string) string {
	if directoryFlag == "" {
		return path
	}
	base, err := filepath.Abs(directoryFlag)
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}

// truncateCell keeps the first n runes of s.
func truncateCell(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
