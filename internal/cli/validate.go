package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fpang/shorts-media-helper/internal/auth"
	"github.com/rs/zerolog/log"
)

// ValidateAndResolveDirectory checks that the path exists and is a directory,
// then returns the absolute path. Exits fatally on failure.
func ValidateAndResolveDirectory(dirPath string) string {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", dirPath).Msg("Directory not found")
		}
		log.Fatal().Err(err).Str("path", dirPath).Msg("Failed to access directory")
	}
	if !info.IsDir() {
		log.Fatal().Str("path", dirPath).Msg("Path is not a directory")
	}

	absPath, err := filepath.Abs(dirPath)
	if err == nil {
		dirPath = absPath
	}

	return dirPath
}

// HandleValidationError logs why the Kakao key was rejected. Geocoding is
// optional, so nothing here is fatal.
func HandleValidationError(err error) {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		log.Warn().Err(err).Msg("Unexpected error during Kakao key validation, geocoding disabled")
		return
	}
	switch validationErr.Type {
	case auth.ErrTypeNoKey:
		log.Warn().Msg("No Kakao key configured. Set KAKAO_REST_KEY to resolve addresses")
	case auth.ErrTypeInvalidKey:
		log.Warn().Err(err).Msg("Invalid Kakao key, geocoding disabled")
	case auth.ErrTypeNetworkError:
		log.Warn().Err(err).Msg("Network error reaching Kakao, geocoding disabled")
	case auth.ErrTypeQuotaExceeded:
		log.Warn().Err(err).Msg("Kakao quota exceeded, geocoding disabled")
	default:
		log.Warn().Err(err).Msg("Kakao key validation failed, geocoding disabled")
	}
}
