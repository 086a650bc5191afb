package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/auth"
	"github.com/sakif/wastenot/internal/blob"
	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/ocr"
	"github.com/sakif/wastenot/internal/planner"
	"github.com/sakif/wastenot/internal/realtime"
	"github.com/sakif/wastenot/internal/reimaginer"
	"github.com/sakif/wastenot/internal/session"
	"github.com/sakif/wastenot/internal/store"
)

// APIDeps is everything the JSON API needs. OCR and Receipts may be nil.
type APIDeps struct {
	Repos          Repositories
	Sessions       *session.Provider
	Hub            *realtime.Hub
	OCR            ocr.Engine
	Receipts       ReceiptArchive
	Reimaginer     *reimaginer.Reimaginer
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// APIHandler serves /api. Every route sits behind auth.RequireAuth.
type APIHandler struct {
	stores
	sessions  *session.Provider
	hub       *realtime.Hub
	ocr       ocr.Engine
	receipts  ReceiptArchive
	chat      *reimaginer.Reimaginer
	maxUpload int64
	logger    *slog.Logger
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(d APIDeps) *APIHandler {
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 8 << 20
	}
	chat := d.Reimaginer
	if chat == nil {
		chat = reimaginer.New(nil)
	}
	return &APIHandler{
		stores:    stores{repos: d.Repos, logger: d.Logger, now: time.Now},
		sessions:  d.Sessions,
		hub:       d.Hub,
		ocr:       d.OCR,
		receipts:  d.Receipts,
		chat:      chat,
		maxUpload: maxUpload,
		logger:    d.Logger,
	}
}

// Routes mounts the API on r.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/me", h.HandleMe)
	r.Get("/session/ws", h.HandleSessionSocket)

	r.Get("/pantry", h.HandleListPantry)
	r.Post("/pantry", h.HandleAddPantry)
	r.Post("/pantry/scan", h.HandleScan)
	r.Patch("/pantry/{id}/status", h.HandlePantryStatus)
	r.Delete("/pantry/{id}", h.HandleRemovePantry)

	r.Get("/dispositions", h.HandleListDispositions)
	r.Post("/donations", h.HandleCreateDonation)
	r.Patch("/donations/{id}/status", h.HandleAdvanceDonation)
	r.Post("/sales", h.HandleCreateSale)
	r.Patch("/sales/{id}/status", h.HandleAdvanceSale)

	r.Get("/profile", h.HandleGetProfile)
	r.Patch("/profile", h.HandleUpdateProfile)
	r.Put("/profile/body", h.HandleBodyMetric)
	r.Post("/profile/credits", h.HandleAddCredits)
	r.Post("/profile/badges", h.HandleAwardBadge)
	r.Patch("/stats", h.HandleUpdateStats)

	r.Post("/reimaginer", h.HandleReimagine)
	r.Get("/planner", h.HandlePlanner)
}

// userID is always present behind RequireAuth; an empty value makes every
// store fail with a precondition error.
func userID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// HandleMe returns the signed-in account.
//
// HTTP: GET /api/me
func (h *APIHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.repos.Users.GetUserByID(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleSessionSocket streams session changes for the caller's token.
//
// HTTP: GET /api/session/ws
func (h *APIHandler) HandleSessionSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := h.sessions.Claims(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	// On an upgrade failure gorilla has already written the response.
	if err := h.hub.Serve(w, r, claims.UserID, claims.TokenID); err != nil {
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
	}
}

// --- pantry ---

// HandleListPantry lists the caller's items, optionally filtered by ?q=.
//
// HTTP: GET /api/pantry?q=milk
func (h *APIHandler) HandleListPantry(w http.ResponseWriter, r *http.Request) {
	var n store.Notices
	ps := h.pantry(userID(r), &n)
	if _, err := ps.List(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	items := ps.Search(r.URL.Query().Get("q"))
	writeData(w, http.StatusOK, viewItems(items, model.DateOf(h.now())), &n)
}

// HandleAddPantry adds one item.
//
// HTTP: POST /api/pantry
func (h *APIHandler) HandleAddPantry(w http.ResponseWriter, r *http.Request) {
	var in store.NewPantryItem
	if err := decodeJSON(r, validate, &in); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	item, err := h.pantry(userID(r), &n).Add(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, viewItems([]model.PantryItem{*item}, model.DateOf(h.now()))[0], &n)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// HandlePantryStatus overrides an item's status.
//
// HTTP: PATCH /api/pantry/{id}/status
func (h *APIHandler) HandlePantryStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, validate, &req); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.pantry(userID(r), nil).UpdateStatus(r.Context(), id, model.Status(req.Status)); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id, "status": req.Status}, nil)
}

// HandleRemovePantry deletes an item. Deleting an absent item succeeds.
//
// HTTP: DELETE /api/pantry/{id}
func (h *APIHandler) HandleRemovePantry(w http.ResponseWriter, r *http.Request) {
	var n store.Notices
	id := chi.URLParam(r, "id")
	if err := h.pantry(userID(r), &n).Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id}, &n)
}

// ScanResponse is the OCR result for one receipt image.
type ScanResponse struct {
	Text          string        `json:"text"`
	Lines         []string      `json:"lines"`
	SuggestedName string        `json:"suggestedName"`
	Engine        string        `json:"engine"`
	DurationMs    int64         `json:"durationMs"`
	Receipt       *blob.Receipt `json:"receipt,omitempty"`
}

// HandleScan reads a receipt photo from the multipart field "image" and
// returns the recognised text. Nothing is added to the pantry; the client
// pre-fills its form from SuggestedName.
//
// HTTP: POST /api/pantry/scan
func (h *APIHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	if h.ocr == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "receipt scanning is not configured",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, apperror.ValidationFailed("image", "upload is too large or malformed"))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, apperror.ValidationFailed("image", "image is required"))
		return
	}
	defer file.Close()

	img, err := io.ReadAll(file)
	if err != nil {
		writeError(w, apperror.ValidationFailed("image", "could not read upload"))
		return
	}

	res, err := h.ocr.Recognize(r.Context(), img)
	if errors.Is(err, ocr.ErrEmptyImage) {
		writeError(w, apperror.ValidationFailed("image", err.Error()))
		return
	}
	if err != nil {
		h.logger.Error("receipt scan failed", slog.String("userID", userID(r)), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	resp := ScanResponse{
		Text:          res.Text,
		Lines:         res.Lines(),
		SuggestedName: res.SuggestedName(),
		Engine:        res.Engine,
		DurationMs:    res.Duration.Milliseconds(),
	}
	if h.receipts != nil {
		rec, err := h.receipts.Put(r.Context(), userID(r), img)
		if err != nil {
			h.logger.Warn("archiving receipt", slog.String("userID", userID(r)), slog.String("error", err.Error()))
		} else {
			resp.Receipt = rec
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- donations and sales ---

// DispositionsResponse is the donate/sell board.
type DispositionsResponse struct {
	Donations  []model.DonationRecord `json:"donations"`
	Sales      []model.SaleRecord     `json:"sales"`
	SalesTotal decimal.Decimal        `json:"salesTotal"`
}

// HandleListDispositions returns both logs, newest first.
//
// HTTP: GET /api/dispositions
func (h *APIHandler) HandleListDispositions(w http.ResponseWriter, r *http.Request) {
	var n store.Notices
	ds, _ := h.dispositions(userID(r), &n)
	donations, sales, err := ds.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, DispositionsResponse{
		Donations:  donations,
		Sales:      sales,
		SalesTotal: ds.SalesTotal(),
	}, &n)
}

// HandleCreateDonation logs a donation and marks its item donated.
//
// HTTP: POST /api/donations
func (h *APIHandler) HandleCreateDonation(w http.ResponseWriter, r *http.Request) {
	var in store.NewDonation
	if err := decodeJSON(r, validate, &in); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	ds, _ := h.dispositions(userID(r), &n)
	res, err := ds.CreateDonation(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, res, &n)
}

// HandleCreateSale logs a sale and marks its item sold.
//
// HTTP: POST /api/sales
func (h *APIHandler) HandleCreateSale(w http.ResponseWriter, r *http.Request) {
	var in store.NewSale
	if err := decodeJSON(r, validate, &in); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	ds, _ := h.dispositions(userID(r), &n)
	res, err := ds.CreateSale(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, res, &n)
}

// HandleAdvanceDonation moves a donation to another status.
//
// HTTP: PATCH /api/donations/{id}/status
func (h *APIHandler) HandleAdvanceDonation(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, validate, &req); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	ds, _ := h.dispositions(userID(r), &n)
	id := chi.URLParam(r, "id")
	if err := ds.AdvanceDonation(r.Context(), id, model.DonationStatus(req.Status)); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id, "status": req.Status}, &n)
}

// HandleAdvanceSale moves a sale to another status.
//
// HTTP: PATCH /api/sales/{id}/status
func (h *APIHandler) HandleAdvanceSale(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, validate, &req); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	ds, _ := h.dispositions(userID(r), &n)
	id := chi.URLParam(r, "id")
	if err := ds.AdvanceSale(r.Context(), id, model.SaleStatus(req.Status)); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id, "status": req.Status}, &n)
}

// --- profile ---

// ProfileResponse pairs the profile with the stats.
type ProfileResponse struct {
	Profile *model.UserProfile         `json:"profile"`
	Stats   *model.SustainabilityStats `json:"stats"`
}

// HandleGetProfile loads (creating on first use) profile and stats.
//
// HTTP: GET /api/profile
func (h *APIHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	var n store.Notices
	ps, err := h.profile(r.Context(), userID(r), &n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, ProfileResponse{Profile: ps.Profile(), Stats: ps.Stats()}, &n)
}

// HandleUpdateProfile merges a partial profile change.
//
// HTTP: PATCH /api/profile
func (h *APIHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var u store.ProfileUpdate
	if err := decodeJSON(r, validate, &u); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	ps, err := h.profile(r.Context(), userID(r), &n)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := ps.UpdateProfile(r.Context(), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, p, &n)
}

type bodyMetricRequest struct {
	Height float64 `json:"height" validate:"gt=0"`
	Weight float64 `json:"weight" validate:"gt=0"`
}

// HandleBodyMetric stores height and weight and the BMI computed from them.
//
// HTTP: PUT /api/profile/body
func (h *APIHandler) HandleBodyMetric(w http.ResponseWriter, r *http.Request) {
	var req bodyMetricRequest
	if err := decodeJSON(r, validate, &req); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	ps, err := h.profile(r.Context(), userID(r), &n)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := ps.UpdateBodyMetric(r.Context(), req.Height, req.Weight)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, p, &n)
}

type creditsRequest struct {
	Amount int64 `json:"amount"`
}

// HandleAddCredits adds to the credit balance.
//
// HTTP: POST /api/profile/credits
func (h *APIHandler) HandleAddCredits(w http.ResponseWriter, r *http.Request) {
	var req creditsRequest
	if err := decodeJSON(r, validate, &req); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	ps, err := h.profile(r.Context(), userID(r), &n)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := ps.AddCredits(r.Context(), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, p, &n)
}

type badgeRequest struct {
	Badge string `json:"badge" validate:"required,oneof=leftover_hero green_guardian waste_warrior"`
}

// HandleAwardBadge adds a catalog badge to the profile. Awarding a badge
// the user already holds returns the profile unchanged.
//
// HTTP: POST /api/profile/badges
func (h *APIHandler) HandleAwardBadge(w http.ResponseWriter, r *http.Request) {
	var req badgeRequest
	if err := decodeJSON(r, validate, &req); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	ps, err := h.profile(r.Context(), userID(r), &n)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := ps.AwardBadge(r.Context(), req.Badge)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, p, &n)
}

// HandleUpdateStats merges a partial stats change.
//
// HTTP: PATCH /api/stats
func (h *APIHandler) HandleUpdateStats(w http.ResponseWriter, r *http.Request) {
	var u store.StatsUpdate
	if err := decodeJSON(r, validate, &u); err != nil {
		writeError(w, err)
		return
	}
	var n store.Notices
	ps, err := h.profile(r.Context(), userID(r), &n)
	if err != nil {
		writeError(w, err)
		return
	}
	s, err := ps.UpdateStats(r.Context(), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, s, &n)
}

// --- reimaginer and planner ---

type reimagineRequest struct {
	Message string `json:"message" validate:"required"`
}

// HandleReimagine answers a chat message with recipe suggestions.
//
// HTTP: POST /api/reimaginer
func (h *APIHandler) HandleReimagine(w http.ResponseWriter, r *http.Request) {
	var req reimagineRequest
	if err := decodeJSON(r, validate, &req); err != nil {
		writeError(w, err)
		return
	}
	msgs, err := h.chat.Reply(req.Message)
	if err != nil {
		writeError(w, apperror.ValidationFailed("message", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandlePlanner computes BMI, calorie target and the sample week. Height,
// weight and goal default to the stored profile.
//
// HTTP: GET /api/planner?height=170&weight=70&sex=female&goal=fat_loss
func (h *APIHandler) HandlePlanner(w http.ResponseWriter, r *http.Request) {
	var n store.Notices
	ps, err := h.profile(r.Context(), userID(r), &n)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := plannerInput(r, ps.Profile())
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := planner.Build(in, model.DateOf(h.now()))
	if err != nil {
		writeError(w, apperror.ValidationFailed("height", err.Error()))
		return
	}
	writeData(w, http.StatusOK, plan, &n)
}

// plannerInput reads the planner query, falling back to profile values for
// anything missing.
func plannerInput(r *http.Request, p *model.UserProfile) (planner.Input, error) {
	q := r.URL.Query()
	in := planner.Input{
		Sex:  planner.Sex(q.Get("sex")),
		Goal: model.HealthGoal(q.Get("goal")),
	}
	if p != nil {
		if p.Height != nil {
			in.HeightCm = *p.Height
		}
		if p.Weight != nil {
			in.WeightKg = *p.Weight
		}
		if in.Goal == "" && p.HealthGoal != nil {
			in.Goal = *p.HealthGoal
		}
	}
	for field, dst := range map[string]*float64{"height": &in.HeightCm, "weight": &in.WeightKg} {
		raw := q.Get(field)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return in, apperror.ValidationFailed(field, field+" must be a number")
		}
		*dst = v
	}
	if err := validateStruct(validate, &in); err != nil {
		return in, err
	}
	return in, nil
}
