package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/sakif/wastenot/internal/store"
)

const flashCookie = "flash"

// setFlash carries notices across a POST-redirect-GET in a short-lived
// cookie.
func setFlash(w http.ResponseWriter, notices []store.Notice) {
	if len(notices) == 0 {
		return
	}
	raw, err := json.Marshal(notices)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the flash cookie. A damaged cookie reads as
// empty.
func popFlash(w http.ResponseWriter, r *http.Request) []store.Notice {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var notices []store.Notice
	if err := json.Unmarshal(raw, &notices); err != nil {
		return nil
	}
	return notices
}
