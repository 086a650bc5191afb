package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/auth"
	"github.com/sakif/wastenot/internal/session"
	"github.com/sakif/wastenot/internal/store"
)

const stateCookie = "oauth_state"

// AuthHandler serves sign-up, sign-in, Google OAuth, sign-out and refresh.
//
// Every endpoint answers a JSON client with JSON and a browser form post
// with a redirect: to /dashboard on success, back to / with a flash
// message on failure.
type AuthHandler struct {
	sessions      *session.Provider
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sessions *session.Provider, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, secureCookies: secureCookies, logger: logger}
}

type credentials struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"fullName"`
}

func isForm(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data"
}

func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if !isForm(r) {
		return c, decodeJSON(r, validate, &c)
	}
	if err := r.ParseForm(); err != nil {
		return c, apperror.ValidationFailed("body", "invalid form")
	}
	c.Email = r.PostForm.Get("email")
	c.Password = r.PostForm.Get("password")
	c.FullName = r.PostForm.Get("fullName")
	return c, validateStruct(validate, &c)
}

// HandleSignUp creates a password account and signs it in.
//
// HTTP: POST /auth/signup
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err == nil {
		var res *session.Result
		if res, err = h.sessions.SignUp(r.Context(), c.Email, c.Password, c.FullName); err == nil {
			h.signedIn(w, r, res, http.StatusCreated)
			return
		}
	}
	h.failed(w, r, "sign-up", err)
}

// HandleSignIn checks an email and password.
//
// HTTP: POST /auth/signin
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err == nil {
		var res *session.Result
		if res, err = h.sessions.SignIn(r.Context(), c.Email, c.Password); err == nil {
			h.signedIn(w, r, res, http.StatusOK)
			return
		}
	}
	h.failed(w, r, "sign-in", err)
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// consent URL. The callback only proceeds when the two match, which proves
// the flow was started here.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	url, err := h.sessions.OAuthURL(state)
	if err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	res, err := h.sessions.SignInWithOAuth(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Warn("auth callback failed", slog.String("error", err.Error()))
		setFlash(w, []store.Notice{{Level: store.LevelError, Message: userMessage(err, "Google sign-in failed")}})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.setToken(w, res.Token, res.ExpiresAt)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleSignOut revokes the caller's token and clears the cookie.
//
// HTTP: POST /auth/signout
//
// A POST, so neither a cross-site link nor a browser prefetch can sign
// anyone out.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context(), auth.TokenFromRequest(r)); err != nil {
		h.logger.Error("sign-out failed", slog.String("error", err.Error()))
		if !isForm(r) {
			writeError(w, err)
			return
		}
		setFlash(w, []store.Notice{{Level: store.LevelError, Message: "Failed to sign out"}})
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.clearToken(w)
	if isForm(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// HandleRefresh swaps a valid token for a new one.
//
// HTTP: POST /auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Refresh(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.setToken(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) signedIn(w http.ResponseWriter, r *http.Request, res *session.Result, status int) {
	h.setToken(w, res.Token, res.ExpiresAt)
	if isForm(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	writeJSON(w, status, res)
}

func (h *AuthHandler) failed(w http.ResponseWriter, r *http.Request, op string, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
	}
	if !isForm(r) {
		writeError(w, err)
		return
	}
	setFlash(w, []store.Notice{{Level: store.LevelError, Message: userMessage(err, "Something went wrong, please try again")}})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// userMessage is the AppError message, or fallback for anything else.
func userMessage(err error, fallback string) string {
	if errors.Is(err, apperror.ErrConflict) {
		return "An account with this email already exists"
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}

// setToken stores the access token in an HttpOnly cookie that JavaScript
// cannot read.
func (h *AuthHandler) setToken(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearToken(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
