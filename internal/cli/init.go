package cli

import (
	"context"
	"errors"
	"time"

	"github.com/fpang/shorts-media-helper/internal/auth"
	"github.com/fpang/shorts-media-helper/internal/geocode"
	"github.com/rs/zerolog/log"
)

// InitGeocoder resolves and validates the Kakao key. It returns nil when no
// key is configured or the key does not work; callers then show coordinates
// instead of addresses.
func InitGeocoder(ctx context.Context) *geocode.Kakao {
	key, err := auth.GetKakaoKey()
	if err != nil {
		if errors.Is(err, auth.ErrNoKey) {
			log.Info().Msg("No Kakao key configured, addresses will be shown as coordinates")
			return nil
		}
		log.Warn().Err(err).Msg("Failed to load Kakao key")
		return nil
	}

	client := geocode.NewKakao(key)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := auth.ValidateKakaoKey(ctx, client); err != nil {
		HandleValidationError(err)
		return nil
	}
	return client
}
