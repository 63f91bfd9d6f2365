// Package lastfm reports plays to the Last.fm scrobbling API.
package lastfm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osn942/spindle/internal/domain/track"
	"github.com/osn942/spindle/internal/infra/config"
)

// Reporter submits now-playing updates and scrobbles. Reporting is
// optional: when credentials are missing the player runs with no
// reporter at all.
type Reporter struct {
	apiKey     string
	apiSecret  string
	sessionKey string
	baseURL    string
	httpClient *http.Client
}

// apiError is the error envelope Last.fm returns in place of a result.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a Reporter from scrobbling credentials.
func New(cfg config.LastFMConfig) (*Reporter, error) {
	if !cfg.Configured() {
		return nil, errors.New("last.fm credentials are not configured")
	}
	return &Reporter{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		sessionKey: cfg.SessionKey,
		baseURL:    "https://ws.audioscrobbler.com/2.0/",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// NowPlaying reports the track as currently playing.
// Reference: https://www.last.fm/api/show/track.updateNowPlaying
func (r *Reporter) NowPlaying(ctx context.Context, t track.Track) error {
	if t.Name == "" || len(t.Artists) == 0 {
		return nil
	}

	params := url.Values{}
	params.Set("method", "track.updateNowPlaying")
	params.Set("artist", t.Artists[0].Name)
	params.Set("track", t.Name)
	if t.Album.Name != "" {
		params.Set("album", t.Album.Name)
	}
	if t.Duration > 0 {
		params.Set("duration", strconv.Itoa(int(t.Duration.Seconds())))
	}
	return r.post(ctx, params)
}

// ReportPlay scrobbles the track with its start time.
// Reference: https://www.last.fm/api/show/track.scrobble
func (r *Reporter) ReportPlay(ctx context.Context, t track.Track, startedAt time.Time) error {
	if t.Name == "" || len(t.Artists) == 0 {
		return nil
	}

	params := url.Values{}
	params.Set("method", "track.scrobble")
	params.Set("artist", t.Artists[0].Name)
	params.Set("track", t.Name)
	params.Set("timestamp", strconv.FormatInt(startedAt.Unix(), 10))
	if t.Album.Name != "" {
		params.Set("album", t.Album.Name)
	}
	if t.Duration > 0 {
		params.Set("duration", strconv.Itoa(int(t.Duration.Seconds())))
	}
	return r.post(ctx, params)
}

// post signs and submits one write call.
func (r *Reporter) post(ctx context.Context, params url.Values) error {
	params.Set("api_key", r.apiKey)
	params.Set("sk", r.sessionKey)
	params.Set("api_sig", r.sign(params))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL,
		strings.NewReader(params.Encode()))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		return errors.Newf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("last.fm returned status %d", resp.StatusCode)
	}

	zlog.Debug().Msgf("lastfm: %s submitted: artist=%s track=%s",
		params.Get("method"), params.Get("artist"), params.Get("track"))
	return nil
}

// sign computes api_sig: md5 over the sorted key/value pairs plus the
// shared secret. The format and api_sig parameters are excluded.
func (r *Reporter) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "format" || k == "api_sig" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	b.WriteString(r.apiSecret)
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
