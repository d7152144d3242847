package gcal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"weeklybrief/internal/aggregate"
	"weeklybrief/internal/model"
)

func writeCredentials(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "credentials.json")
	body := fmt.Sprintf(`{"installed":{"client_id":"client","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.example.com/auth","token_uri":%q}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func writeToken(t *testing.T, path string) {
	t.Helper()
	b, err := json.Marshal(&oauth2.Token{AccessToken: "access", TokenType: "Bearer", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
}

// calendarServer fakes the two Calendar v3 methods the provider uses.
func calendarServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/calendars/primary/events":
			q := r.URL.Query()
			require.Equal(t, "2025-02-03T00:00:00+01:00", q.Get("timeMin"))
			require.Equal(t, "2025-02-09T23:59:59+01:00", q.Get("timeMax"))
			require.Equal(t, "true", q.Get("singleEvents"))
			require.Equal(t, "startTime", q.Get("orderBy"))
			require.Equal(t, "Europe/Prague", q.Get("timeZone"))

			if q.Get("pageToken") == "" {
				fmt.Fprint(w, `{"items":[
					{"summary":"Standup","status":"confirmed","creator":{"email":"anna@example.com"},
					 "start":{"dateTime":"2025-02-03T09:00:00+01:00"},"end":{"dateTime":"2025-02-03T09:30:00+01:00"}}
				],"nextPageToken":"p2"}`)
				return
			}
			fmt.Fprint(w, `{"items":[
				{"summary":"Offsite","status":"confirmed","organizer":{"email":"team@example.com"},
				 "start":{"date":"2025-02-05"},"end":{"date":"2025-02-06"}},
				{"summary":"Dropped","status":"cancelled","start":{"dateTime":"2025-02-04T10:00:00Z"}}
			]}`)
		case "/users/me/calendarList":
			fmt.Fprint(w, `{"items":[
				{"id":"primary@example.com","summary":"Me","primary":true},
				{"id":"family@group.calendar.google.com","summary":"Family","summaryOverride":"Home"},
				{"id":"nameless@example.com"}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func window(t *testing.T) aggregate.Window {
	loc, err := time.LoadLocation("Europe/Prague")
	require.NoError(t, err)
	return aggregate.Window{
		Start:    time.Date(2025, 2, 3, 0, 0, 0, 0, loc),
		End:      time.Date(2025, 2, 9, 23, 59, 59, 0, loc),
		Location: loc,
	}
}

func TestMissingCredentials(t *testing.T) {
	dir := t.TempDir()
	_, err := New(context.Background(), Auth{
		CredentialsPath: filepath.Join(dir, "credentials.json"),
		TokenPath:       filepath.Join(dir, "token.json"),
	})
	require.ErrorIs(t, err, ErrCredentialsMissing)
	require.Contains(t, err.Error(), "credentials.json")
}

func TestProviderFetchAndList(t *testing.T) {
	srv := calendarServer(t)
	defer srv.Close()

	dir := t.TempDir()
	auth := Auth{
		CredentialsPath: writeCredentials(t, dir, srv.URL+"/token"),
		TokenPath:       filepath.Join(dir, "token.json"),
	}
	writeToken(t, auth.TokenPath)

	p, err := New(context.Background(), auth, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	raw, err := p.Fetch(context.Background(), "primary", window(t))
	require.NoError(t, err)
	require.Equal(t, []model.RawEvent{
		{
			Summary: "Standup", Status: "confirmed", Creator: "anna@example.com",
			Start: model.RawTime{DateTime: "2025-02-03T09:00:00+01:00"},
			End:   model.RawTime{DateTime: "2025-02-03T09:30:00+01:00"},
		},
		{
			Summary: "Offsite", Status: "confirmed", Creator: "team@example.com",
			Start: model.RawTime{Date: "2025-02-05"},
			End:   model.RawTime{Date: "2025-02-06"},
		},
		{
			Summary: "Dropped", Status: "cancelled",
			Start: model.RawTime{DateTime: "2025-02-04T10:00:00Z"},
		},
	}, raw)

	infos, err := p.ListSources(context.Background())
	require.NoError(t, err)
	require.Equal(t, []model.SourceInfo{
		{ID: "primary@example.com", Name: "Me", Kind: Kind},
		{ID: "family@group.calendar.google.com", Name: "Home", Kind: Kind},
		{ID: "nameless@example.com", Name: "nameless@example.com", Kind: Kind},
	}, infos)
}

func TestFetchErrorSurfaces(t *testing.T) {
	srv := calendarServer(t)
	defer srv.Close()

	svc, err := calendar.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access"}))))
	require.NoError(t, err)

	_, err = NewProvider(svc).Fetch(context.Background(), "missing", window(t))
	require.Error(t, err)
}

func TestConsentFlowSavesToken(t *testing.T) {
	var exchanged bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authcode", r.PostForm.Get("code"))
		exchanged = true
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access","token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	var out bytes.Buffer
	auth := Auth{
		CredentialsPath: writeCredentials(t, dir, srv.URL+"/token"),
		TokenPath:       filepath.Join(dir, "nested", "token.json"),
		In:              strings.NewReader("authcode\n"),
		Out:             &out,
	}

	_, err := auth.HTTPClient(context.Background())
	require.NoError(t, err)
	require.True(t, exchanged)
	require.Contains(t, out.String(), "https://accounts.example.com/auth?")

	tok, err := loadToken(auth.TokenPath)
	require.NoError(t, err)
	require.Equal(t, "access", tok.AccessToken)
	require.Equal(t, "refresh", tok.RefreshToken)

	fi, err := os.Stat(auth.TokenPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestConsentFlowNeedsTerminal(t *testing.T) {
	dir := t.TempDir()
	auth := Auth{
		CredentialsPath: writeCredentials(t, dir, "https://oauth.example.com/token"),
		TokenPath:       filepath.Join(dir, "token.json"),
	}
	_, err := auth.HTTPClient(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCredentialsMissing)
}

func TestPersistingTokenSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	next := &oauth2.Token{AccessToken: "fresh", RefreshToken: "refresh"}
	ts := &persistingTokenSource{base: oauth2.StaticTokenSource(next), path: path, last: "stale"}

	tok, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, "fresh", tok.AccessToken)

	saved, err := loadToken(path)
	require.NoError(t, err)
	require.Equal(t, "fresh", saved.AccessToken)

	// Same token again: no rewrite needed.
	require.NoError(t, os.Remove(path))
	_, err = ts.Token()
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
