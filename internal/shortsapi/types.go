package shortsapi

import (
	"fmt"
	"strings"
)

// Weather is the sky condition tagged on a short.
type Weather string

const (
	WeatherSunny  Weather = "SUNNY"
	WeatherCloudy Weather = "CLOUDY"
	WeatherRainy  Weather = "RAINY"
	WeatherSnowy  Weather = "SNOWY"
)

// Season is the season tagged on a short.
type Season string

const (
	SeasonSpring Season = "SPRING"
	SeasonSummer Season = "SUMMER"
	SeasonAutumn Season = "AUTUMN"
	SeasonWinter Season = "WINTER"
)

// Theme is the kind of place a short shows.
type Theme string

const (
	ThemeNightView Theme = "NIGHT_VIEW"
	ThemeOcean     Theme = "OCEAN"
	ThemeMountain  Theme = "MOUNTAIN"
	ThemeCafe      Theme = "CAFE"
	ThemeFood      Theme = "FOOD"
	ThemeFestival  Theme = "FESTIVAL"
	ThemeWalk      Theme = "WALK"
)

var (
	weathers = []Weather{WeatherSunny, WeatherCloudy, WeatherRainy, WeatherSnowy}
	seasons  = []Season{SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter}
	themes   = []Theme{ThemeNightView, ThemeOcean, ThemeMountain, ThemeCafe, ThemeFood, ThemeFestival, ThemeWalk}
)

// ParseWeather accepts any casing; the empty string means "not set".
func ParseWeather(s string) (Weather, error) {
	return parseEnum(s, weathers, "weather")
}

// ParseSeason accepts any casing; "fall" is read as AUTUMN.
func ParseSeason(s string) (Season, error) {
	if strings.EqualFold(strings.TrimSpace(s), "fall") {
		return SeasonAutumn, nil
	}
	return parseEnum(s, seasons, "season")
}

// ParseTheme accepts any casing and "night-view" for NIGHT_VIEW.
func ParseTheme(s string) (Theme, error) {
	return parseEnum(strings.ReplaceAll(s, "-", "_"), themes, "theme")
}

func parseEnum[T ~string](s string, values []T, what string) (T, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for _, v := range values {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown %s %q", what, s)
}

// UploadURLRequest asks the backend for presigned PUT URLs for a video and its thumbnail.
type UploadURLRequest struct {
	VideoFileName        string `json:"videoFileName"`
	VideoContentType     string `json:"videoContentType"`
	VideoFileSize        int64  `json:"videoFileSize"`
	ThumbnailFileName    string `json:"thumbnailFileName"`
	ThumbnailContentType string `json:"thumbnailContentType"`
	ThumbnailFileSize    int64  `json:"thumbnailFileSize"`
}

// UploadURLResponse carries the presigned URLs and the object keys to reference later.
type UploadURLResponse struct {
	VideoUploadURL     string `json:"videoUploadUrl"`
	VideoKey           string `json:"videoKey"`
	ThumbnailUploadURL string `json:"thumbnailUploadUrl"`
	ThumbnailKey       string `json:"thumbnailKey"`
	// ExpiresIn is the URL lifetime in seconds.
	ExpiresIn int `json:"expiresIn"`
}

// CreateRequest registers an uploaded short.
type CreateRequest struct {
	VideoKey     string   `json:"videoKey"`
	ThumbnailKey string   `json:"thumbnailKey"`
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	ContentID    *int64   `json:"contentId,omitempty"`
	Weather      Weather  `json:"weather,omitempty"`
	Theme        Theme    `json:"theme,omitempty"`
	Season       Season   `json:"season,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Hashtags     []string `json:"hashtags,omitempty"`
}

// CreateResponse is the backend's view of the new short.
type CreateResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// NearbyAttraction is a tourist spot close to a coordinate.
type NearbyAttraction struct {
	ContentID int64  `json:"contentId"`
	Title     string `json:"title"`
	// Distance in meters.
	Distance float64 `json:"distance"`
}

type nearbyResponse struct {
	Attractions []NearbyAttraction `json:"attractions"`
}
