package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/wastenot/internal/auth"
	"github.com/sakif/wastenot/internal/blob"
	"github.com/sakif/wastenot/internal/cache"
	"github.com/sakif/wastenot/internal/handler"
	"github.com/sakif/wastenot/internal/ocr"
	"github.com/sakif/wastenot/internal/realtime"
	"github.com/sakif/wastenot/internal/repository/sqlstore"
	"github.com/sakif/wastenot/internal/session"
	"github.com/sakif/wastenot/web"
)

// testEnv is the full HTTP surface over an in-memory SQLite database.
type testEnv struct {
	router   http.Handler
	db       *sqlstore.DB
	sessions *session.Provider
	hub      *realtime.Hub
}

type envOption func(*handler.APIDeps)

func withOCR(e ocr.Engine) envOption {
	return func(d *handler.APIDeps) { d.OCR = e }
}

func withReceipts(a handler.ReceiptArchive) envOption {
	return func(d *handler.APIDeps) { d.Receipts = a }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlstore.New(sqlstore.SQLite, ":memory:")
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("test-secret-at-least-32-characters!", time.Hour)
	require.NoError(t, err)
	mem := cache.NewMemoryCache()
	sessions := session.NewProvider(db.Users(), tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), nil, mem, logger)
	hub := realtime.NewHub(sessions, nil, logger)
	t.Cleanup(func() {
		hub.Close()
		mem.Close()
		db.Close()
	})

	repos := handler.Repositories{
		Users:     db.Users(),
		Pantry:    db.Pantry(),
		Donations: db.Donations(),
		Sales:     db.Sales(),
		Profiles:  db.Profiles(),
		Stats:     db.Profiles(),
	}
	deps := handler.APIDeps{Repos: repos, Sessions: sessions, Hub: hub, Logger: logger}
	for _, opt := range opts {
		opt(&deps)
	}

	pages, err := handler.NewPageHandler(handler.PageDeps{
		Repos:     repos,
		Sessions:  sessions,
		Templates: web.Templates(),
		Logger:    logger,
	})
	require.NoError(t, err)
	authHandler := handler.NewAuthHandler(sessions, false, logger)
	api := handler.NewAPIHandler(deps)

	r := chi.NewRouter()
	pages.Routes(r)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignUp)
		r.Post("/signin", authHandler.HandleSignIn)
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
		r.Post("/signout", authHandler.HandleSignOut)
		r.Post("/refresh", authHandler.HandleRefresh)
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(sessions))
		api.Routes(r)
	})

	return &testEnv{router: r, db: db, sessions: sessions, hub: hub}
}

// do sends a JSON request with token as a bearer token (if set).
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// form posts an urlencoded form with the token cookie (if set).
func (e *testEnv) form(t *testing.T, path, token string, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// page GETs an HTML page with the token cookie (if set).
func (e *testEnv) page(t *testing.T, path, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// signUp creates an account and returns its token and user ID.
func (e *testEnv) signUp(t *testing.T, email, fullName string) (string, string) {
	t.Helper()
	res, err := e.sessions.SignUp(context.Background(), email, "password123", fullName)
	require.NoError(t, err)
	return res.Token, res.User.ID
}

// envelope decodes {"data": ..., "notices": [...]}.
type envelope[T any] struct {
	Data    T `json:"data"`
	Notices []struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"notices"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// fakeOCR returns a fixed text.
type fakeOCR struct {
	text string
	err  error
	got  []byte
}

func (f *fakeOCR) Recognize(ctx context.Context, img []byte) (*ocr.Result, error) {
	f.got = img
	if len(img) == 0 {
		return nil, ocr.ErrEmptyImage
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.Result{Text: f.text, Engine: "fake", Duration: 5 * time.Millisecond}, nil
}

// fakeArchive records uploads.
type fakeArchive struct {
	mu   sync.Mutex
	puts map[string][]byte
	err  error
}

func (f *fakeArchive) Put(ctx context.Context, userID string, img []byte) (*blob.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[userID] = img
	return &blob.Receipt{Key: "receipts/" + userID + "/r.png", ContentType: "image/png", Size: int64(len(img)), StoredAt: time.Now()}, nil
}
