// Package music controls playback on the user's Spotify device so the
// coach can drive the soundtrack by voice.
package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/soyeahso/repcoach/internal/config"
	"github.com/soyeahso/repcoach/internal/dispatch"
	"github.com/soyeahso/repcoach/internal/logging"
)

// ErrNotConfigured means the music section is absent or incomplete.
var ErrNotConfigured = errors.New("music: not configured")

const (
	playerBase     = "https://api.spotify.com/v1/me/player"
	defaultStep    = 10
	requestTimeout = 10 * time.Second
)

// spotifyEndpoint is the account-service token endpoint used to refresh
// access tokens.
var spotifyEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// Client drives the Spotify Web API player endpoints. Access tokens are
// minted and refreshed by the oauth2 token source from the configured
// refresh token.
type Client struct {
	http       *http.Client
	base       string
	volumeStep int
	log        *logging.Logger
}

// NewClient builds a player client from config. Returns ErrNotConfigured
// when the music section lacks credentials.
func NewClient(cfg *config.MusicConfig, log *logging.Logger) (*Client, error) {
	if cfg == nil || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, ErrNotConfigured
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     spotifyEndpoint,
	}
	src := oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	step := cfg.VolumeStep
	if step <= 0 {
		step = defaultStep
	}

	httpClient := oauth2.NewClient(context.Background(), oauth2.ReuseTokenSource(nil, src))
	httpClient.Timeout = requestTimeout

	return &Client{
		http:       httpClient,
		base:       playerBase,
		volumeStep: step,
		log:        log.Sub("music"),
	}, nil
}

// HandleAction executes the player operation for a music action. Non-music
// actions are ignored so the client can sit directly behind a dispatcher.
func (c *Client) HandleAction(ctx context.Context, action dispatch.Action) error {
	switch action {
	case dispatch.ActionMusicPlay:
		return c.Play(ctx)
	case dispatch.ActionMusicPause:
		return c.Pause(ctx)
	case dispatch.ActionMusicNext:
		return c.Next(ctx)
	case dispatch.ActionMusicVolumeUp:
		return c.AdjustVolume(ctx, c.volumeStep)
	case dispatch.ActionMusicVolumeDown:
		return c.AdjustVolume(ctx, -c.volumeStep)
	default:
		return nil
	}
}

// Play resumes playback on the active device.
func (c *Client) Play(ctx context.Context) error {
	return c.call(ctx, http.MethodPut, "/play")
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) error {
	return c.call(ctx, http.MethodPut, "/pause")
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/next")
}

// AdjustVolume shifts the current volume by delta percentage points,
// clamped to [0, 100].
func (c *Client) AdjustVolume(ctx context.Context, delta int) error {
	current, err := c.currentVolume(ctx)
	if err != nil {
		return err
	}

	target := current + delta
	if target < 0 {
		target = 0
	}
	if target > 100 {
		target = 100
	}

	c.log.Debug().Int("from", current).Int("to", target).Msg("adjusting volume")
	return c.call(ctx, http.MethodPut, fmt.Sprintf("/volume?volume_percent=%d", target))
}

// playerState is the subset of the player response we read.
type playerState struct {
	Device struct {
		VolumePercent int `json:"volume_percent"`
	} `json:"device"`
}

func (c *Client) currentVolume(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("music: player state: %w", err)
	}
	defer resp.Body.Close()

	// 204 means no active device; treat as half volume so a later
	// adjustment still lands somewhere sensible.
	if resp.StatusCode == http.StatusNoContent {
		return 50, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("music: player state returned %s", resp.Status)
	}

	var state playerState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return 0, fmt.Errorf("music: parsing player state: %w", err)
	}
	return state.Device.VolumePercent, nil
}

func (c *Client) call(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("music: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("music: %s %s returned %s", method, path, resp.Status)
	}
	return nil
}
