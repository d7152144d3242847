// Package web hosts the podcast feed, episode audio and cover art.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"weeklybrief/internal/artifact"
	"weeklybrief/internal/config"
	"weeklybrief/internal/feed"
	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/model"
)

const episodesCacheTTL = 30 * time.Second

// Server serves the contents of the output directory over HTTP.
type Server struct {
	cfg   *config.Config
	out   artifact.Dir
	store *feed.Store
	mux   *http.ServeMux

	// In-memory cache for /api/episodes responses.
	episodesMu    sync.RWMutex
	episodesCache *episodesCache
}

type episodesCache struct {
	resp      episodesResponse
	updatedAt time.Time
}

// NewServer constructs a Server for cfg.OutputDir.
func NewServer(cfg *config.Config, store *feed.Store) *Server {
	s := &Server{
		cfg:   cfg,
		out:   artifact.Dir(cfg.OutputDir),
		store: store,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Weekly Brief", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer listens on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, store *feed.Store) error {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, NewServer(cfg, store))
}

// Serve runs s on ln until ctx is cancelled.
func Serve(ctx context.Context, ln net.Listener, s *Server) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String(), "output_dir", s.cfg.OutputDir)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/episodes", s.handleEpisodes)
	s.mux.HandleFunc("/"+artifact.FeedFilename, s.handleFeed)
	s.mux.HandleFunc("/"+artifact.CoverFilename, s.handleCover)
	s.mux.HandleFunc("/", s.handleArtifact)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	http.ServeFile(w, r, s.out.FeedPath())
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(string(s.out), artifact.CoverFilename))
}

// handleArtifact serves weekly-brief-*.mp3 and weekly-brief-*.txt. Any
// other path is a 404; the output directory is never listed.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" || name != path.Base(name) || !strings.HasPrefix(name, "weekly-brief-") {
		http.NotFound(w, r)
		return
	}
	switch path.Ext(name) {
	case ".mp3":
		w.Header().Set("Content-Type", feed.AudioType)
	case ".txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	default:
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(string(s.out), name))
}

// episodesResponse is the JSON response shape for /api/episodes.
type episodesResponse struct {
	FeedURL  string       `json:"feed_url,omitempty"`
	Episodes []episodeDTO `json:"episodes"`
}

type episodeDTO struct {
	Date      string `json:"date"`
	GUID      string `json:"guid"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	URL       string `json:"url,omitempty"`
}

// handleEpisodes lists the episodes in feed.xml, newest first.
//
// GET /api/episodes
func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now()
	s.episodesMu.RLock()
	ec := s.episodesCache
	s.episodesMu.RUnlock()
	if ec != nil && now.Sub(ec.updatedAt) < episodesCacheTTL {
		writeJSON(w, http.StatusOK, ec.resp)
		return
	}

	eps, err := s.store.Episodes()
	if err != nil {
		appLog.Error("api episodes: load feed failed", err, "path", s.store.Path())
		writeError(w, http.StatusInternalServerError, "failed to read feed")
		return
	}

	base := s.cfg.Feed.BaseURL
	resp := episodesResponse{Episodes: make([]episodeDTO, 0, len(eps))}
	if base != "" {
		resp.FeedURL = base + "/" + artifact.FeedFilename
	}
	for _, ep := range eps {
		dto := episodeDTO{
			Date:      ep.Date.Format(model.DateLayout),
			GUID:      model.ArtifactStem(ep.Date),
			Filename:  ep.AudioFilename,
			SizeBytes: ep.SizeBytes,
		}
		if base != "" {
			dto.URL = base + "/" + ep.AudioFilename
		}
		resp.Episodes = append(resp.Episodes, dto)
	}

	s.episodesMu.Lock()
	s.episodesCache = &episodesCache{resp: resp, updatedAt: time.Now()}
	s.episodesMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
