// Package shortsapi is a client for the shorts backend: presigned upload URLs,
// short registration and nearby attraction lookup.
//
// An upload is a three-step process:
//  1. POST /shorts/upload-url to obtain presigned PUT URLs and object keys
//  2. PUT the video and the thumbnail bytes to their presigned URLs
//  3. POST /shorts referencing both keys plus the user's details
package shortsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is used when neither NewClient nor SHORTS_API_URL name a backend.
	DefaultBaseURL = "http://localhost:8080"

	// defaultTimeout bounds JSON API calls. Presigned uploads use their own
	// client without a timeout because large files take minutes.
	defaultTimeout = 30 * time.Second

	// NearbyRadiusMeters is the search radius the upload form uses.
	NearbyRadiusMeters = 20000
)

// Client calls the shorts backend.
type Client struct {
	httpClient   *http.Client
	uploadClient *http.Client
	baseURL      string
}

// NewClient creates a backend client. An empty baseURL falls back to the
// SHORTS_API_URL environment variable, then DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("SHORTS_API_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		uploadClient: &http.Client{},
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx answer from the backend or object storage.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// GetUploadURL requests presigned PUT URLs for a video and its thumbnail.
func (c *Client) GetUploadURL(ctx context.Context, req UploadURLRequest) (*UploadURLResponse, error) {
	var resp UploadURLResponse
	if err := c.doJSON(ctx, http.MethodPost, "/shorts/upload-url", req, &resp); err != nil {
		return nil, fmt.Errorf("get upload url: %w", err)
	}
	if resp.VideoUploadURL == "" || resp.ThumbnailUploadURL == "" {
		return nil, fmt.Errorf("get upload url: response is missing presigned URLs")
	}
	log.Debug().
		Str("videoKey", resp.VideoKey).
		Str("thumbnailKey", resp.ThumbnailKey).
		Int("expiresIn", resp.ExpiresIn).
		Msg("Presigned upload URLs issued")
	return &resp, nil
}

// Create registers an uploaded short.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	var resp CreateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/shorts", req, &resp); err != nil {
		return nil, fmt.Errorf("create short: %w", err)
	}
	log.Info().Int64("id", resp.ID).Str("status", resp.Status).Msg("Short created")
	return &resp, nil
}

// NearbyAttractions lists attractions within radius meters of the coordinate,
// nearest first as returned by the backend.
func (c *Client) NearbyAttractions(ctx context.Context, lat, lon float64, radius int) ([]NearbyAttraction, error) {
	q := url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(lon, 'f', -1, 64)},
		"radius":    {strconv.Itoa(radius)},
	}
	var resp nearbyResponse
	if err := c.doJSON(ctx, http.MethodGet, "/attractions/nearby?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("nearby attractions: %w", err)
	}
	return resp.Attractions, nil
}

// ProgressFunc receives whole percentages (0-100) of a transfer.
type ProgressFunc func(percent int)

// UploadToPresignedURL PUTs size bytes from body to a presigned URL.
// onProgress, when non-nil, is called each time the sent percentage changes.
// Object storage must answer 200.
func (c *Client) UploadToPresignedURL(ctx context.Context, presignedURL, contentType string, body io.Reader, size int64, onProgress ProgressFunc) error {
	startTime := time.Now()
	pr := &progressReader{r: body, total: size, onProgress: onProgress, last: -1}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, pr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	httpResp, err := c.uploadClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Presigned upload response")
		return fmt.Errorf("upload failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().
		Int("statusCode", httpResp.StatusCode).
		Int64("bytes", pr.read).
		Dur("duration", duration).
		Msg("Presigned upload response")

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return &APIError{
			Method:     http.MethodPut,
			Path:       redactQuery(presignedURL),
			StatusCode: httpResp.StatusCode,
			Body:       truncate(string(respBody), 200),
		}
	}
	pr.report(100)
	return nil
}

// doJSON sends an optional JSON body and decodes a JSON answer into out.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	startTime := time.Now()

	var reqBody io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	log.Debug().Str("method", method).Str("path", endpoint).Msg("Shorts API request")
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Shorts API response")
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Shorts API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		log.Error().Str("path", endpoint).Int("statusCode", httpResp.StatusCode).Msg("Shorts API error")
		return &APIError{
			Method:     method,
			Path:       endpoint,
			StatusCode: httpResp.StatusCode,
			Body:       truncate(string(body), 200),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	return nil
}

type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	last       int
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		// 100 is reported only once the server has accepted the body
		p.report(min(99, int(p.read*100/p.total)))
	}
	return n, err
}

func (p *progressReader) report(percent int) {
	if p.onProgress == nil || percent == p.last {
		return
	}
	p.last = percent
	p.onProgress(percent)
}

// redactQuery drops the signature query string from a presigned URL.
func redactQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// truncate returns the first n characters of s, appending "..." if truncated.
// truncate keeps at most n bytes of s without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
