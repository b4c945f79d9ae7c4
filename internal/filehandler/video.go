package filehandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ExternalTools are the binaries used for thumbnails and the fallback probe.
var ExternalTools = []string{"ffmpeg", "ffprobe"}

// LookupTools resolves ExternalTools on PATH. Missing tools map to "".
func LookupTools() map[string]string {
	found := make(map[string]string, len(ExternalTools))
	for _, name := range ExternalTools {
		path, err := exec.LookPath(name)
		if err != nil {
			found[name] = ""
			continue
		}
		found[name] = path
	}
	return found
}

// CheckTools returns an error naming every missing tool. Extraction still
// works without them for plain MP4/MOV files but thumbnails do not.
func CheckTools() error {
	tools := LookupTools()
	var missing []string
	for _, name := range ExternalTools {
		if tools[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s not found in PATH: install FFmpeg with brew install ffmpeg (macOS) or apt install ffmpeg (Linux)", strings.Join(missing, ", "))
	}
	return nil
}

// ffprobeOutput represents the JSON structure from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string            `json:"filename"`
	Duration   string            `json:"duration"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	SideDataType string `json:"side_data_type"`
	Rotation     int    `json:"rotation"`
}

// FFprobeProber runs ffprobe (part of FFmpeg) and reads its JSON report.
// It handles any container FFmpeg understands.
type FFprobeProber struct {
	// Path overrides the ffprobe binary; empty means look it up in PATH.
	Path string
}

func (p FFprobeProber) Probe(ctx context.Context, filePath string) (*ProbeInfo, error) {
	log.Debug().Str("path", filePath).Msg("Probing video using ffprobe")

	ffprobePath := p.Path
	if ffprobePath == "" {
		var err error
		ffprobePath, err = exec.LookPath("ffprobe")
		if err != nil {
			return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput converts ffprobe JSON into ProbeInfo. A report without a
// video stream is an error: the file is not something we can preview.
func parseFFprobeOutput(output []byte) (*ProbeInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &ProbeInfo{Prober: "ffprobe"}
	if probe.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			info.Duration = dur
		}
	}

	var video *ffprobeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "video" && probe.Streams[i].Width > 0 {
			video = &probe.Streams[i]
			break
		}
	}
	if video == nil {
		return nil, errors.New("ffprobe found no video stream")
	}

	info.Width, info.Height = video.Width, video.Height
	if quarterTurn(streamRotation(video)) {
		info.Width, info.Height = info.Height, info.Width
	}
	info.Codec = video.CodecName
	if video.RFrameRate != "" {
		info.FrameRate = parseFrameRate(video.RFrameRate)
	}
	if info.Duration == 0 && video.Duration != "" {
		info.Duration, _ = strconv.ParseFloat(video.Duration, 64)
	}

	log.Debug().
		Float64("duration", info.Duration).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("frame_rate", info.FrameRate).
		Str("codec", info.Codec).
		Msg("Video probed via ffprobe")

	return info, nil
}

// streamRotation returns the display rotation in degrees. Newer ffprobe reports it
// as display matrix side data, older builds as a "rotate" tag.
func streamRotation(s *ffprobeStream) int {
	for _, sd := range s.SideDataList {
		if sd.SideDataType == "Display Matrix" {
			return sd.Rotation
		}
	}
	if v, ok := s.Tags["rotate"]; ok {
		r, _ := strconv.Atoi(v)
		return r
	}
	return 0
}

func quarterTurn(deg int) bool {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg == 90 || deg == 270
}

// parseFrameRate parses frame rate from ffprobe format (e.g., "60/1" -> 60.0)
func parseFrameRate(value string) float64 {
	parts := strings.Split(value, "/")
	if len(parts) == 2 {
		num, _ := strconv.ParseFloat(parts[0], 64)
		den, _ := strconv.ParseFloat(parts[1], 64)
		if den != 0 {
			return num / den
		}
	}
	rate, _ := strconv.ParseFloat(value, 64)
	return rate
}
