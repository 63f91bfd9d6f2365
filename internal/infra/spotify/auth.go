package spotify

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osn942/spindle/internal/infra/config"
)

// NewAuthenticator builds the OAuth2 authenticator shared by the
// player and the auth helper. The scopes cover library reads, playlist
// reads and Connect playback control.
func NewAuthenticator(cfg config.SpotifyConfig) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserReadPlaybackState,
			spotifyauth.ScopeUserModifyPlaybackState,
			spotifyauth.ScopeUserLibraryRead,
			spotifyauth.ScopePlaylistReadPrivate,
		),
	)
}

// LoadToken returns the OAuth2 token to authenticate with: a bare
// refresh token when configured, otherwise the token file written by
// the auth helper.
func LoadToken(cfg config.SpotifyConfig) (*oauth2.Token, error) {
	if cfg.RefreshToken != "" {
		return &oauth2.Token{RefreshToken: cfg.RefreshToken}, nil
	}

	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read token file %s (run the auth helper first)", cfg.TokenFile)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, errors.Wrapf(err, "failed to parse token file %s", cfg.TokenFile)
	}
	return &token, nil
}

// SaveToken writes the token file consumed by LoadToken.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode token")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write token file")
	}
	return nil
}
