package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fpang/shorts-media-helper/internal/filehandler"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// ErrCanceled is returned when the user dismisses the file picker.
var ErrCanceled = errors.New("selection canceled")

// PickVideoFile opens the native file dialog filtered to uploadable videos.
func PickVideoFile() (string, error) {
	patterns := make([]string, 0, len(filehandler.SupportedVideoExtensions)*2)
	for ext := range filehandler.SupportedVideoExtensions {
		patterns = append(patterns, "*"+ext, "*"+strings.ToUpper(ext))
	}

	selected, err := zenity.SelectFile(
		zenity.Title("Select a video to upload"),
		zenity.FileFilters{
			{Name: "Videos (MP4, MOV)", Patterns: patterns},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrCanceled
		}
		return "", fmt.Errorf("file picker failed: %w", err)
	}

	log.Debug().Str("path", selected).Msg("File picked via native dialog")
	return selected, nil
}

// Prompter reads answers line by line.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter prompts on stderr and reads from stdin.
func NewPrompter() *Prompter {
	return &Prompter{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

// Ask prints label (and the default in brackets, if any) and returns the
// trimmed answer, or def when the answer is empty or input has ended.
func (p *Prompter) Ask(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}

	input, err := p.in.ReadString('\n')
	if err != nil && input == "" {
		if !errors.Is(err, io.EOF) {
			log.Warn().Err(err).Msg("Failed to read input, using default")
		}
		return def
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
