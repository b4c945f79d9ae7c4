package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fpang/shorts-media-helper/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ValidationError represents a specific type of key validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the daily quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// KeyChecker makes one authenticated request and reports the HTTP status.
type KeyChecker interface {
	Check(ctx context.Context) (int, error)
}

// ValidateKakaoKey verifies the key behind checker with a single lookup.
// It returns nil if the key works, or a ValidationError describing why not.
// A validation metric is written to stderr in EMF form.
func ValidateKakaoKey(ctx context.Context, checker KeyChecker) error {
	log.Debug().Msg("Validating Kakao REST key")

	start := time.Now()
	status, err := checker.Check(ctx)
	elapsed := time.Since(start)

	valErr := classify(status, err)
	result := "success"
	if valErr != nil {
		result = valErr.Type.String()
	}

	metrics.New(metrics.Namespace).
		To(os.Stderr).
		Dimension("Result", result).
		Duration("KakaoKeyValidationMs", elapsed).
		Count("KakaoKeyValidationResult").
		Flush()

	log.Debug().
		Str("result", result).
		Int("statusCode", status).
		Dur("duration", elapsed).
		Msg("Kakao key validation result")

	if valErr != nil {
		return valErr
	}
	log.Info().Msg("Kakao REST key validated successfully")
	return nil
}

// classify maps a transport error or HTTP status to a ValidationError.
func classify(status int, err error) *ValidationError {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return &ValidationError{
				Type:    ErrTypeNetworkError,
				Message: "Network error - check your internet connection",
				Err:     err,
			}
		}
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "Failed to validate Kakao key",
			Err:     err,
		}
	}

	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == 401 || status == 403:
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "Kakao REST key is invalid or the Local API is not enabled for the app",
			Err:     fmt.Errorf("status %d", status),
		}
	case status == 429:
		return &ValidationError{
			Type:    ErrTypeQuotaExceeded,
			Message: "Kakao daily quota exceeded - try again later",
			Err:     fmt.Errorf("status %d", status),
		}
	case status >= 500:
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Kakao server error - try again later",
			Err:     fmt.Errorf("status %d", status),
		}
	default:
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: fmt.Sprintf("unexpected status %d from Kakao", status),
		}
	}
}
