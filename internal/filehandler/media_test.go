package filehandler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsVideo(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".mp4", true},
		{".MP4", true},
		{".mov", true},
		{".MOV", true},
		{".avi", false},
		{".webm", false},
		{".jpg", false},
		{".txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			result := IsVideo(tt.ext)
			if result != tt.expected {
				t.Errorf("IsVideo(%q) = %v, want %v", tt.ext, result, tt.expected)
			}
		})
	}
}

func TestGetMIMEType(t *testing.T) {
	tests := []struct {
		ext          string
		expectedMIME string
		expectError  bool
	}{
		{".mp4", "video/mp4", false},
		{".MP4", "video/mp4", false},
		{".mov", "video/quicktime", false},
		{".mkv", "", true},
		{".jpg", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			mime, err := GetMIMEType(tt.ext)
			if tt.expectError {
				if !errors.Is(err, ErrUnsupportedType) {
					t.Errorf("GetMIMEType(%q) error = %v, want ErrUnsupportedType", tt.ext, err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error for %q: %v", tt.ext, err)
			}
			if mime != tt.expectedMIME {
				t.Errorf("GetMIMEType(%q) = %q, want %q", tt.ext, mime, tt.expectedMIME)
			}
		})
	}
}

func TestLoadMediaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.MOV")
	if err := os.WriteFile(path, []byte("not really a movie"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2023, 7, 1, 8, 30, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMediaFile(path)
	if err != nil {
		t.Fatalf("LoadMediaFile() error = %v", err)
	}
	if m.MIMEType != "video/quicktime" {
		t.Errorf("MIMEType = %q, want video/quicktime", m.MIMEType)
	}
	if m.Size != int64(len("not really a movie")) {
		t.Errorf("Size = %d", m.Size)
	}
	if !m.ModTime.Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", m.ModTime, mtime)
	}
	if m.Name() != "clip.MOV" {
		t.Errorf("Name() = %q", m.Name())
	}
}

func TestLoadMediaFileErrors(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.mp4")},
		{"directory", dir},
		{"wrong extension", txt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadMediaFile(tt.path); err == nil {
				t.Errorf("LoadMediaFile(%q) expected error", tt.path)
			}
		})
	}
}

func TestValidateForUpload(t *testing.T) {
	tests := []struct {
		name    string
		file    MediaFile
		wantErr error
	}{
		{"mp4 within limit", MediaFile{Path: "a.mp4", MIMEType: "video/mp4", Size: 10 << 20}, nil},
		{"mov at limit", MediaFile{Path: "a.mov", MIMEType: "video/quicktime", Size: MaxUploadSize}, nil},
		{"over limit", MediaFile{Path: "a.mp4", MIMEType: "video/mp4", Size: MaxUploadSize + 1}, ErrFileTooLarge},
		{"image", MediaFile{Path: "a.jpg", MIMEType: "image/jpeg", Size: 1}, ErrUnsupportedType},
		{"type checked before size", MediaFile{Path: "a.mkv", MIMEType: "video/x-matroska", Size: MaxUploadSize * 2}, ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateForUpload(&tt.file)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateForUpload() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateForUpload() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCoordinatesToDMS(t *testing.T) {
	tests := []struct {
		name     string
		lat      float64
		lon      float64
		expected string
	}{
		{
			name:     "Busan",
			lat:      35.1,
			lon:      129.04,
			expected: "35°6'0.00\"N, 129°2'24.00\"E",
		},
		{
			name:     "Sydney (southern hemisphere)",
			lat:      -33.8688,
			lon:      151.2093,
			expected: "33°52'7.68\"S, 151°12'33.48\"E",
		},
		{
			name:     "Origin",
			lat:      0,
			lon:      0,
			expected: "0°0'0.00\"N, 0°0'0.00\"E",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CoordinatesToDMS(tt.lat, tt.lon)
			if result != tt.expected {
				t.Errorf("got %v, want %v", result, tt.expected)
			}
		})
	}
}
