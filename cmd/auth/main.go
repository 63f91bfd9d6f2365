// Package main provides the one-shot Spotify authorization helper. It
// walks the authorization-code flow on a local callback server and
// writes the token file the player authenticates with.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"

	"github.com/osn942/spindle/internal/infra/config"
	"github.com/osn942/spindle/internal/infra/spotify"
)

var (
	app          = kingpin.New("spindle-auth", "Spotify authorization helper for spindle")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8899").Int()
	tokenFile    = app.Flag("token-file", "Where to write the token").Default("token.json").String()

	ch    = make(chan *oauth2.Token)
	state = "spindle-auth-state"
)

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	auth := spotify.NewAuthenticator(config.SpotifyConfig{
		ClientID:     *clientID,
		ClientSecret: *clientSecret,
		RedirectURL:  fmt.Sprintf("http://127.0.0.1:%d/callback", *port),
	})

	http.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.Token(r.Context(), state, r)
		if err != nil {
			http.Error(w, "Failed to get token", http.StatusForbidden)
			log.Printf("Failed to get token: %v", err)
			return
		}
		if st := r.FormValue("state"); st != state {
			http.Error(w, "State mismatch", http.StatusForbidden)
			log.Printf("State mismatch: %s != %s", st, state)
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window and return to the terminal.")
		ch <- token
	})

	server := &http.Server{Addr: fmt.Sprintf(":%d", *port)}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize spindle:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(state))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	token := <-ch

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
	}

	if err := spotify.SaveToken(*tokenFile, token); err != nil {
		log.Fatalf("Failed to save token: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Printf("Token written to %s\n", *tokenFile)
	fmt.Println("")
	fmt.Println("Point the player at it via spotify.token_file, or set")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=%q\n", token.RefreshToken)
}
