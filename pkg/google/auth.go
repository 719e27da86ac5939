package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/klokku/appointments/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

var ErrUnathenticated = fmt.Errorf("google calendar is unauthenticated, run the google-auth command first")

// OAuthConfig returns the desktop flow configuration for the calendar scope.
func OAuthConfig(cfg config.Google) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientId,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{gcal.CalendarEventsScope},
	}
}

// AuthCodeURL is the consent page the operator opens to obtain a code.
func AuthCodeURL(conf *oauth2.Config) string {
	return conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeAndSave trades the authorization code for a token and stores it.
func ExchangeAndSave(ctx context.Context, conf *oauth2.Config, code, tokenFile string) error {
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return saveToken(tokenFile, token)
}

// NewService builds a calendar client from the stored token. Refreshed tokens
// are written back to the same file.
func NewService(ctx context.Context, cfg config.Google) (*gcal.Service, error) {
	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrUnathenticated
		}
		return nil, fmt.Errorf("could not read token file %s: %w", cfg.TokenFile, err)
	}

	conf := OAuthConfig(cfg)
	source := &savingTokenSource{
		base: conf.TokenSource(context.Background(), token),
		path: cfg.TokenFile,
		last: token.AccessToken,
	}
	client := oauth2.NewClient(context.Background(), oauth2.ReuseTokenSource(token, source))

	service, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		err := fmt.Errorf("unable to retrieve Calendar client: %v", err)
		log.Error(err)
		return nil, err
	}
	return service, nil
}

type savingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	path string
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := saveToken(s.path, token); err != nil {
			log.Warnf("could not persist refreshed google token: %v", err)
		}
	}
	return token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}
