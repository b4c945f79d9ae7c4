// Package geocode turns clip coordinates into a human-readable Korean address
// using the Kakao Local API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://dapi.kakao.com"
	defaultTimeout = 10 * time.Second
)

// Resolver looks up a display address for a coordinate.
type Resolver interface {
	Address(ctx context.Context, lat, lon float64) string
}

// Kakao is a Kakao Local API client.
type Kakao struct {
	httpClient *http.Client
	baseURL    string
	restKey    string
}

// NewKakao creates a client authenticating with the given REST API key.
func NewKakao(restKey string) *Kakao {
	return &Kakao{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		restKey:    restKey,
	}
}

type coord2addressResponse struct {
	Documents []struct {
		RoadAddress *struct {
			AddressName string `json:"address_name"`
		} `json:"road_address"`
		Address *struct {
			AddressName string `json:"address_name"`
		} `json:"address"`
	} `json:"documents"`
}

type coord2regionResponse struct {
	Documents []struct {
		AddressName string `json:"address_name"`
	} `json:"documents"`
}

// FormatCoordinates is the address of last resort.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lon)
}

// Address returns the road address for the coordinate, falling back to the
// lot address, then the administrative region name, then the formatted
// coordinates. It never fails; lookup errors are logged.
func (k *Kakao) Address(ctx context.Context, lat, lon float64) string {
	if k.restKey == "" {
		log.Debug().Msg("No Kakao REST key configured, using coordinates as address")
		return FormatCoordinates(lat, lon)
	}

	var addr coord2addressResponse
	if err := k.get(ctx, "/v2/local/geo/coord2address.json", lat, lon, &addr); err != nil {
		log.Warn().Err(err).Msg("coord2address lookup failed")
	} else if len(addr.Documents) > 0 {
		doc := addr.Documents[0]
		if doc.RoadAddress != nil && doc.RoadAddress.AddressName != "" {
			return doc.RoadAddress.AddressName
		}
		if doc.Address != nil && doc.Address.AddressName != "" {
			return doc.Address.AddressName
		}
	}

	var region coord2regionResponse
	if err := k.get(ctx, "/v2/local/geo/coord2regioncode.json", lat, lon, &region); err != nil {
		log.Warn().Err(err).Msg("coord2regioncode lookup failed")
	} else if len(region.Documents) > 0 && region.Documents[0].AddressName != "" {
		return region.Documents[0].AddressName
	}

	return FormatCoordinates(lat, lon)
}

// get queries a coordinate endpoint. Kakao takes x=longitude, y=latitude.
func (k *Kakao) get(ctx context.Context, endpoint string, lat, lon float64, out any) error {
	startTime := time.Now()
	q := url.Values{
		"x": {strconv.FormatFloat(lon, 'f', -1, 64)},
		"y": {strconv.FormatFloat(lat, 'f', -1, 64)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+k.restKey)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("path", endpoint).
		Int("statusCode", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Kakao API response")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kakao %s: status %d", endpoint, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Seoul City Hall, used as a known-good coordinate for key checks.
const checkLat, checkLon = 37.5663, 126.9779

// Check makes one region lookup and returns its HTTP status code. A non-nil
// error means no response was received.
func (k *Kakao) Check(ctx context.Context) (int, error) {
	q := url.Values{
		"x": {strconv.FormatFloat(checkLon, 'f', -1, 64)},
		"y": {strconv.FormatFloat(checkLat, 'f', -1, 64)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+"/v2/local/geo/coord2regioncode.json?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "KakaoAK "+k.restKey)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
