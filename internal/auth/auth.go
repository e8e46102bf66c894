package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/justestif/moodlens/internal/logging"
)

const callbackTimeout = 2 * time.Minute

var (
	// ErrMissingCredentials is returned when the client ID or secret is empty.
	ErrMissingCredentials = errors.New("missing spotify client id or secret")

	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Authenticator obtains a Spotify client acting on behalf of a listener.
// The redirect URL must use the explicit IPv4 loopback address for local
// use; a callback server listens on its host and path during the flow.
type Authenticator struct {
	auth     *spotifyauth.Authenticator
	cache    *TokenCache
	callback *url.URL
	out      io.Writer
	logger   *slog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithTokenCache replaces the default token cache.
func WithTokenCache(c *TokenCache) Option {
	return func(a *Authenticator) {
		a.cache = c
	}
}

// WithOutput sets where login instructions are printed.
func WithOutput(w io.Writer) Option {
	return func(a *Authenticator) {
		a.out = w
	}
}

// New creates an Authenticator requesting read access to recently played
// tracks. Returns ErrMissingCredentials if either credential is empty.
func New(clientID, clientSecret, redirectURL string, opts ...Option) (*Authenticator, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}
	callback, err := url.Parse(redirectURL)
	if err != nil || callback.Host == "" {
		return nil, fmt.Errorf("invalid redirect url %q", redirectURL)
	}

	a := &Authenticator{
		auth: spotifyauth.New(
			spotifyauth.WithClientID(clientID),
			spotifyauth.WithClientSecret(clientSecret),
			spotifyauth.WithRedirectURL(redirectURL),
			spotifyauth.WithScopes(
				spotifyauth.ScopeUserReadRecentlyPlayed,
				spotifyauth.ScopeUserReadPrivate,
			),
		),
		callback: callback,
		out:      os.Stdout,
		logger:   logging.Named("auth"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		cache, err := OpenTokenCache("")
		if err != nil {
			return nil, fmt.Errorf("creating token cache: %w", err)
		}
		a.cache = cache
	}
	return a, nil
}

// Authenticate returns an authenticated Spotify client.
// A cached token is used when it still works; oauth2 refreshes it as
// needed. Otherwise the full OAuth flow runs.
func (a *Authenticator) Authenticate(ctx context.Context) (*spotify.Client, error) {
	// Prefer the cached token
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}

	if token != nil {
		// oauth2 refreshes an expired access token on first use
		client := spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true))

		// A cheap call tells whether the token is still accepted
		if _, err := client.CurrentUser(ctx); err == nil {
			// Keep the refreshed token, if any
			newToken, tokenErr := client.Token()
			if tokenErr == nil && newToken.AccessToken != token.AccessToken {
				if err := a.cache.Save(newToken); err != nil {
					a.logger.Warn("caching refreshed token failed", "error", err)
				}
			}
			return client, nil
		}
		// Rejected; fall through to a fresh authorization
		a.logger.Info("cached token rejected, starting new authentication")
	}

	return a.runOAuthFlow(ctx)
}

// runOAuthFlow performs the full OAuth authorization code flow.
func (a *Authenticator) runOAuthFlow(ctx context.Context) (*spotify.Client, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	// The callback handler reports through these
	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	// Serve only the redirect path on the redirect host
	path := a.callback.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})
	server := &http.Server{
		Addr:              a.callback.Host,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in background
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	// Print auth URL for user
	fmt.Fprintln(a.out, "To authenticate, open this URL in your browser:")
	fmt.Fprintln(a.out, a.auth.AuthURL(state))
	fmt.Fprintln(a.out, "Waiting for authentication...")

	// Wait for callback or timeout
	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case err := <-errCh:
		_ = server.Shutdown(context.Background())
		return nil, err
	case <-time.After(callbackTimeout):
		_ = server.Shutdown(context.Background())
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return nil, ctx.Err()
	}

	// Shutdown server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	// Cache token
	if err := a.cache.Save(token); err != nil {
		// auth succeeded; only the cache is lost
		a.logger.Warn("caching token failed", "path", a.cache.Path(), "error", err)
	}

	return spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true)), nil
}

// handleCallback processes the OAuth callback from Spotify.
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, expectedState string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	// Verify state
	if r.URL.Query().Get("state") != expectedState {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		errCh <- ErrStateMismatch
		return
	}

	// The listener may have denied access
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
		errCh <- fmt.Errorf("spotify auth error: %s", errMsg)
		return
	}

	// Exchange code for token
	token, err := a.auth.Token(r.Context(), expectedState, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		errCh <- fmt.Errorf("exchanging code for token: %w", err)
		return
	}

	// Success response
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "moodlens is authorized. You can close this window and return to the terminal.")

	tokenCh <- token
}

// generateState creates a random state string for OAuth.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Logout removes the cached token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}
