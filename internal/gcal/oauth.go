package gcal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"weeklybrief/internal/artifact"
	appLog "weeklybrief/internal/log"
)

// ErrCredentialsMissing is returned when the OAuth client file is absent.
var ErrCredentialsMissing = errors.New("google credentials file not found")

// CredentialsHint tells the user how to obtain the OAuth client file.
const CredentialsHint = "Download OAuth client credentials from Google Cloud Console " +
	"(APIs & Services > Credentials > Create OAuth client ID > Desktop app), " +
	"save the file as credentials.json and point google.credentials_path at it."

// Auth locates the OAuth client secret and the cached user token. In and
// Out drive the one-time consent flow when no token exists yet.
type Auth struct {
	CredentialsPath string
	TokenPath       string
	In              io.Reader
	Out             io.Writer
}

// HTTPClient returns a client authorized for read-only calendar access.
// Refreshed tokens are written back to TokenPath.
func (a Auth) HTTPClient(ctx context.Context) (*http.Client, error) {
	b, err := os.ReadFile(a.CredentialsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsMissing, a.CredentialsPath)
		}
		return nil, fmt.Errorf("read google credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse google credentials %s: %w", a.CredentialsPath, err)
	}

	tok, err := loadToken(a.TokenPath)
	if err != nil {
		appLog.Info("no usable google token; starting consent flow", "token_path", a.TokenPath, "err", err)
		tok, err = a.consent(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(a.TokenPath, tok); err != nil {
			return nil, err
		}
	}

	ts := &persistingTokenSource{
		base: cfg.TokenSource(ctx, tok),
		path: a.TokenPath,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts)), nil
}

// consent runs the copy/paste authorization code flow on In/Out.
func (a Auth) consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	if a.In == nil || a.Out == nil {
		return nil, fmt.Errorf("google token %s missing and no terminal for the consent flow", a.TokenPath)
	}

	url := cfg.AuthCodeURL("weeklybrief", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(a.Out, "Open this link in your browser, allow calendar access, then paste the authorization code:\n%s\n> ", url)

	code, err := bufio.NewReader(a.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("no authorization code entered")
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token %s is empty", path)
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if err := artifact.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("save google token: %w", err)
	}
	return nil
}

// persistingTokenSource saves every newly minted access token.
type persistingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := saveToken(s.path, tok); err != nil {
			appLog.Error("google token refresh not persisted", err, "token_path", s.path)
		}
	}
	return tok, nil
}
