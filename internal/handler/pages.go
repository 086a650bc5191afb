package handler

// PAGES:
// Every page is parsed once at startup as base.html plus its own file:
//
//	base.html       defines the layout and calls {{template "content" .}}
//	dashboard.html  defines {{define "content"}}...{{end}}
//
// Each page gets its own *template.Template, so two pages can both define
// "content" without clashing.

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/wastenot/internal/auth"
	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/planner"
	"github.com/sakif/wastenot/internal/reimaginer"
	"github.com/sakif/wastenot/internal/session"
	"github.com/sakif/wastenot/internal/store"
)

var pageNames = []string{"landing", "dashboard", "pantry", "planner", "reimaginer", "donate_sell", "profile"}

var templateFuncs = template.FuncMap{
	"date": func(d *model.Date) string {
		if d == nil {
			return "-"
		}
		return d.String()
	},
	"goal": func(g model.HealthGoal) string {
		if g == "" {
			return "Not set"
		}
		return planner.GoalLabel(g)
	},
	"deref": func(f *float64) float64 {
		if f == nil {
			return 0
		}
		return *f
	},
	"days": func(n *int) string {
		switch {
		case n == nil:
			return "-"
		case *n < 0:
			return fmt.Sprintf("%d days ago", -*n)
		case *n == 0:
			return "today"
		case *n == 1:
			return "tomorrow"
		}
		return fmt.Sprintf("in %d days", *n)
	},
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"when":  func(t time.Time) string { return t.Format("Jan 2, 2006") },
}

// PageDeps is everything the pages need.
type PageDeps struct {
	Repos      Repositories
	Sessions   *session.Provider
	Templates  fs.FS
	Reimaginer *reimaginer.Reimaginer
	Logger     *slog.Logger
}

// PageHandler renders the server-side pages and handles their form posts.
type PageHandler struct {
	stores
	sessions *session.Provider
	pages    map[string]*template.Template
	chat     *reimaginer.Reimaginer
	logger   *slog.Logger
}

// NewPageHandler parses every page template. A missing or broken template
// fails here rather than on the first request.
func NewPageHandler(d PageDeps) (*PageHandler, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("base.html").Funcs(templateFuncs).ParseFS(d.Templates, "base.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = t
	}
	chat := d.Reimaginer
	if chat == nil {
		chat = reimaginer.New(nil)
	}
	return &PageHandler{
		stores:   stores{repos: d.Repos, logger: d.Logger, now: time.Now},
		sessions: d.Sessions,
		pages:    pages,
		chat:     chat,
		logger:   d.Logger,
	}, nil
}

// Routes mounts the pages on r.
func (h *PageHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleLanding)
	r.Get("/dashboard", h.signedIn(h.HandleDashboard))
	r.Get("/pantry", h.signedIn(h.HandlePantry))
	r.Post("/pantry", h.signedIn(h.HandlePantryAdd))
	r.Post("/pantry/{id}/status", h.signedIn(h.HandlePantryStatus))
	r.Post("/pantry/{id}/delete", h.signedIn(h.HandlePantryDelete))
	r.Get("/planner", h.signedIn(h.HandlePlanner))
	r.Get("/reimaginer", h.signedIn(h.HandleReimaginer))
	r.Post("/reimaginer", h.signedIn(h.HandleReimaginer))
	r.Get("/donate-sell", h.signedIn(h.HandleDonateSell))
	r.Post("/donations", h.signedIn(h.HandleDonate))
	r.Post("/sales", h.signedIn(h.HandleSell))
	r.Get("/profile", h.signedIn(h.HandleProfile))
	r.Post("/profile", h.signedIn(h.HandleProfileUpdate))
	r.Post("/profile/body", h.signedIn(h.HandleProfileBody))
}

// pageData is what base.html sees.
type pageData struct {
	Title         string
	Active        string
	User          *model.User
	Notices       []store.Notice
	GoogleEnabled bool
	Content       any
}

type userHandler func(w http.ResponseWriter, r *http.Request, user *model.User)

// currentUser opens a session for the request's token and waits for its
// initial check. Nil means signed out.
func (h *PageHandler) currentUser(r *http.Request) *model.User {
	sess := h.sessions.Open(r.Context(), auth.TokenFromRequest(r))
	defer sess.Close()
	user, err := sess.Wait(r.Context())
	if err != nil {
		return nil
	}
	return user
}

// signedIn sends anonymous visitors to the landing page.
func (h *PageHandler) signedIn(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := h.currentUser(r)
		if user == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next(w, r, user)
	}
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, page, title string, user *model.User, n *store.Notices, content any) {
	h.renderStatus(w, r, http.StatusOK, page, title, user, n, content)
}

// renderStatus is render with a status other than 200, used to send a
// rejected form back with what the user typed.
func (h *PageHandler) renderStatus(w http.ResponseWriter, r *http.Request, status int, page, title string, user *model.User, n *store.Notices, content any) {
	data := pageData{
		Title:         title,
		Active:        page,
		User:          user,
		Notices:       append(popFlash(w, r), n.All()...),
		GoogleEnabled: h.sessions.OAuthEnabled(),
		Content:       content,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages[page].ExecuteTemplate(w, "base.html", data); err != nil {
		h.logger.Error("template execution failed", slog.String("page", page), slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// redirect carries the collected notices to the next page.
func redirect(w http.ResponseWriter, r *http.Request, to string, n *store.Notices) {
	setFlash(w, n.All())
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (h *PageHandler) today() model.Date {
	return model.DateOf(h.now())
}

// HandleLanding renders the landing page for everyone.
//
// HTTP: GET /
func (h *PageHandler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "landing", "WasteNot", h.currentUser(r), &store.Notices{}, nil)
}

// --- dashboard ---

type dashboardView struct {
	Name     string
	Summary  PantrySummary
	Expiring []ItemView
	Recent   []ItemView
	Stats    *model.SustainabilityStats
	Credits  int64
	Badges   []Badge
}

// HandleDashboard shows pantry counts, expiring items, stats and badges.
// Pantry and profile load concurrently; a failed half renders empty with
// its notice.
//
// HTTP: GET /dashboard
func (h *PageHandler) HandleDashboard(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	ps := h.pantry(user.ID, &n)
	prof := store.NewProfileStore(h.repos.Profiles, h.repos.Stats, user, &n, h.logger)

	var g errgroup.Group
	g.Go(func() error {
		_, err := ps.List(r.Context())
		return err
	})
	g.Go(func() error {
		_, _, err := prof.Load(r.Context())
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Warn("dashboard partially loaded", slog.String("userID", user.ID), slog.String("error", err.Error()))
	}

	items := ps.Items()
	views := viewItems(items, h.today())
	recent := views
	if len(recent) > 5 {
		recent = recent[:5]
	}
	v := dashboardView{
		Name:     user.DisplayName(),
		Summary:  summarize(items),
		Expiring: expiringSoon(views),
		Recent:   recent,
		Stats:    prof.Stats(),
		Badges:   badgesFor(prof.Profile()),
	}
	if p := prof.Profile(); p != nil {
		v.Name = p.FullName
		v.Credits = p.Credits
	}
	if v.Stats == nil {
		v.Stats = model.NewStats(user.ID)
	}
	h.render(w, r, "dashboard", "Dashboard", user, &n, v)
}

// --- pantry ---

type pantryView struct {
	Query      string
	Items      []ItemView
	Summary    PantrySummary
	Categories []model.Category
	Statuses   []model.Status
	Form       pantryFormValues
}

// pantryFormValues is the add-item form as submitted.
type pantryFormValues struct {
	Name       string
	Quantity   string
	Unit       string
	ExpiryDate string
	Category   model.Category
}

var settableStatuses = []model.Status{
	model.Status(model.FreshnessFresh),
	model.Status(model.FreshnessExpiring),
	model.Status(model.FreshnessExpired),
	model.Status(model.DispositionUsed),
}

// HandlePantry lists the pantry, filtered by ?q=.
//
// HTTP: GET /pantry
func (h *PageHandler) HandlePantry(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	h.pantryPage(w, r, http.StatusOK, user, &n, pantryFormValues{})
}

func (h *PageHandler) pantryPage(w http.ResponseWriter, r *http.Request, status int, user *model.User, n *store.Notices, form pantryFormValues) {
	ps := h.pantry(user.ID, n)
	all, _ := ps.List(r.Context())

	q := r.URL.Query().Get("q")
	h.renderStatus(w, r, status, "pantry", "My Pantry", user, n, pantryView{
		Query:      q,
		Items:      viewItems(ps.Search(q), h.today()),
		Summary:    summarize(all),
		Categories: model.Categories,
		Statuses:   settableStatuses,
		Form:       form,
	})
}

// HandlePantryAdd handles the add-item form. A rejected item comes back
// as the pantry page with the form still filled in.
//
// HTTP: POST /pantry
func (h *PageHandler) HandlePantryAdd(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	in, form, err := pantryForm(r)
	if err == nil {
		_, err = h.pantry(user.ID, &n).Add(r.Context(), in)
	} else {
		n.Notify(store.LevelError, err.Error())
	}
	if err != nil {
		h.pantryPage(w, r, http.StatusUnprocessableEntity, user, &n, form)
		return
	}
	redirect(w, r, "/pantry", &n)
}

func pantryForm(r *http.Request) (store.NewPantryItem, pantryFormValues, error) {
	if err := r.ParseForm(); err != nil {
		return store.NewPantryItem{}, pantryFormValues{}, fmt.Errorf("invalid form")
	}
	form := pantryFormValues{
		Name:       r.PostForm.Get("name"),
		Quantity:   strings.TrimSpace(r.PostForm.Get("quantity")),
		Unit:       r.PostForm.Get("unit"),
		ExpiryDate: strings.TrimSpace(r.PostForm.Get("expiryDate")),
		Category:   model.Category(r.PostForm.Get("category")),
	}
	in := store.NewPantryItem{
		Name:     form.Name,
		Unit:     form.Unit,
		Category: form.Category,
	}
	if form.Quantity != "" {
		q, err := strconv.ParseFloat(form.Quantity, 64)
		if err != nil {
			return in, form, fmt.Errorf("quantity must be a number")
		}
		in.Quantity = &q
	}
	if form.ExpiryDate != "" {
		d, err := model.ParseDate(form.ExpiryDate)
		if err != nil {
			return in, form, fmt.Errorf("expiry date must be YYYY-MM-DD")
		}
		in.ExpiryDate = &d
	}
	return in, form, nil
}

// HandlePantryStatus handles the per-item status buttons.
//
// HTTP: POST /pantry/{id}/status
func (h *PageHandler) HandlePantryStatus(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	status := model.Status(r.FormValue("status"))
	if err := h.pantry(user.ID, &n).UpdateStatus(r.Context(), chi.URLParam(r, "id"), status); err != nil {
		n.Notify(store.LevelError, "Failed to update item")
	} else {
		n.Notify(store.LevelSuccess, "Item marked as "+string(status))
	}
	redirect(w, r, "/pantry", &n)
}

// HandlePantryDelete handles the remove button.
//
// HTTP: POST /pantry/{id}/delete
func (h *PageHandler) HandlePantryDelete(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	_ = h.pantry(user.ID, &n).Remove(r.Context(), chi.URLParam(r, "id"))
	redirect(w, r, "/pantry", &n)
}

// --- planner ---

type plannerView struct {
	Height float64
	Weight float64
	Sex    planner.Sex
	Goal   model.HealthGoal
	Plan   *planner.Plan
	Goals  []model.HealthGoal
}

// HandlePlanner renders BMI, calorie target and the sample week. Without
// height and weight, from the query or the profile, only the form shows.
//
// HTTP: GET /planner
func (h *PageHandler) HandlePlanner(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	prof := store.NewProfileStore(h.repos.Profiles, h.repos.Stats, user, &n, h.logger)
	_, _, _ = prof.Load(r.Context())

	v := plannerView{Goals: []model.HealthGoal{model.GoalFatLoss, model.GoalMaintenance, model.GoalMuscleGain}}
	in, err := plannerInput(r, prof.Profile())
	v.Height, v.Weight, v.Sex, v.Goal = in.HeightCm, in.WeightKg, in.Sex, in.Goal
	switch {
	case in.HeightCm == 0 && in.WeightKg == 0:
	case err != nil:
		n.Notify(store.LevelError, err.Error())
	default:
		if plan, err := planner.Build(in, h.today()); err == nil {
			v.Plan = plan
		}
	}
	h.render(w, r, "planner", "Meal Planner", user, &n, v)
}

// --- reimaginer ---

type chatView struct {
	Messages []reimaginer.Message
}

// HandleReimaginer shows the greeting and, on POST, the answer to the
// submitted message. Conversations are not stored.
//
// HTTP: GET, POST /reimaginer
func (h *PageHandler) HandleReimaginer(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	v := chatView{Messages: []reimaginer.Message{{
		ID:        "greeting",
		Role:      reimaginer.RoleBot,
		Content:   reimaginer.Greeting,
		Timestamp: h.now(),
	}}}
	if r.Method == http.MethodPost {
		msgs, err := h.chat.Reply(r.FormValue("message"))
		if err != nil {
			n.Notify(store.LevelError, "Please type a message first")
		}
		v.Messages = append(v.Messages, msgs...)
	}
	h.render(w, r, "reimaginer", "Leftover Reimaginer", user, &n, v)
}

// --- donate and sell ---

type donateSellView struct {
	Available  []ItemView
	Donations  []model.DonationRecord
	Sales      []model.SaleRecord
	SalesTotal decimal.Decimal
	Donation   donationFormValues
	Sale       saleFormValues
}

type donationFormValues struct {
	ItemID       string
	ItemName     string
	Organization string
	ContactInfo  string
	Notes        string
}

type saleFormValues struct {
	ItemID        string
	ItemName      string
	Price         string
	Platform      string
	Description   string
	ContactMethod string
}

// HandleDonateSell lists the items that can still go and both logs.
//
// HTTP: GET /donate-sell
func (h *PageHandler) HandleDonateSell(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	h.donateSellPage(w, r, http.StatusOK, user, &n, donationFormValues{}, saleFormValues{})
}

func (h *PageHandler) donateSellPage(w http.ResponseWriter, r *http.Request, status int, user *model.User, n *store.Notices, donation donationFormValues, sale saleFormValues) {
	ds, ps := h.dispositions(user.ID, n)

	var g errgroup.Group
	g.Go(func() error {
		_, err := ps.List(r.Context())
		return err
	})
	g.Go(func() error {
		_, _, err := ds.List(r.Context())
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Warn("donate-sell partially loaded", slog.String("userID", user.ID), slog.String("error", err.Error()))
	}

	h.renderStatus(w, r, status, "donate_sell", "Donate & Sell", user, n, donateSellView{
		Available:  viewItems(ps.Available(), h.today()),
		Donations:  ds.Donations(),
		Sales:      ds.Sales(),
		SalesTotal: ds.SalesTotal(),
		Donation:   donation,
		Sale:       sale,
	})
}

// itemName fills in the name of the selected pantry item when the form
// left it blank.
func itemName(r *http.Request, ps *store.PantryStore, itemID, name string) string {
	if strings.TrimSpace(name) != "" || itemID == "" {
		return name
	}
	if _, err := ps.List(r.Context()); err != nil {
		return name
	}
	if it, ok := ps.Find(itemID); ok {
		return it.Name
	}
	return name
}

// HandleDonate handles the donation form.
//
// HTTP: POST /donations
func (h *PageHandler) HandleDonate(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	form := donationFormValues{
		ItemID:       r.FormValue("itemId"),
		ItemName:     r.FormValue("itemName"),
		Organization: r.FormValue("organization"),
		ContactInfo:  r.FormValue("contactInfo"),
		Notes:        r.FormValue("notes"),
	}
	ds, ps := h.dispositions(user.ID, &n)
	_, err := ds.CreateDonation(r.Context(), store.NewDonation{
		ItemID:       form.ItemID,
		ItemName:     itemName(r, ps, form.ItemID, form.ItemName),
		Organization: form.Organization,
		ContactInfo:  form.ContactInfo,
		Notes:        form.Notes,
	})
	if err != nil {
		h.donateSellPage(w, r, http.StatusUnprocessableEntity, user, &n, form, saleFormValues{})
		return
	}
	redirect(w, r, "/donate-sell", &n)
}

// HandleSell handles the sale form.
//
// HTTP: POST /sales
func (h *PageHandler) HandleSell(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	form := saleFormValues{
		ItemID:        r.FormValue("itemId"),
		ItemName:      r.FormValue("itemName"),
		Price:         strings.TrimSpace(r.FormValue("price")),
		Platform:      r.FormValue("platform"),
		Description:   r.FormValue("description"),
		ContactMethod: r.FormValue("contactMethod"),
	}
	price, err := decimal.NewFromString(form.Price)
	if err != nil {
		n.Notify(store.LevelError, "price must be a number")
		h.donateSellPage(w, r, http.StatusUnprocessableEntity, user, &n, donationFormValues{}, form)
		return
	}
	ds, ps := h.dispositions(user.ID, &n)
	_, err = ds.CreateSale(r.Context(), store.NewSale{
		ItemID:        form.ItemID,
		ItemName:      itemName(r, ps, form.ItemID, form.ItemName),
		Price:         price,
		Platform:      form.Platform,
		Description:   form.Description,
		ContactMethod: form.ContactMethod,
	})
	if err != nil {
		h.donateSellPage(w, r, http.StatusUnprocessableEntity, user, &n, donationFormValues{}, form)
		return
	}
	redirect(w, r, "/donate-sell", &n)
}

// --- profile ---

type profileView struct {
	Profile  *model.UserProfile
	Stats    *model.SustainabilityStats
	Category planner.Category
	Badges   []Badge
	Goals    []model.HealthGoal
	Goal     model.HealthGoal
}

// HandleProfile shows the profile, body metrics and stats.
//
// HTTP: GET /profile
func (h *PageHandler) HandleProfile(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	prof := store.NewProfileStore(h.repos.Profiles, h.repos.Stats, user, &n, h.logger)
	_, _, _ = prof.Load(r.Context())

	v := profileView{
		Profile: prof.Profile(),
		Stats:   prof.Stats(),
		Badges:  badgesFor(prof.Profile()),
		Goals:   []model.HealthGoal{model.GoalFatLoss, model.GoalMaintenance, model.GoalMuscleGain},
	}
	if v.Profile != nil && v.Profile.BMI != nil {
		v.Category = planner.CategoryOf(*v.Profile.BMI)
	}
	if v.Profile != nil && v.Profile.HealthGoal != nil {
		v.Goal = *v.Profile.HealthGoal
	}
	h.render(w, r, "profile", "Profile", user, &n, v)
}

// HandleProfileUpdate handles the name and goal form.
//
// HTTP: POST /profile
func (h *PageHandler) HandleProfileUpdate(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	prof := store.NewProfileStore(h.repos.Profiles, h.repos.Stats, user, &n, h.logger)
	if _, _, err := prof.Load(r.Context()); err != nil {
		redirect(w, r, "/profile", &n)
		return
	}

	var u store.ProfileUpdate
	if name := strings.TrimSpace(r.FormValue("fullName")); name != "" {
		u.FullName = &name
	}
	if g := model.HealthGoal(r.FormValue("healthGoal")); g != "" {
		u.HealthGoal = &g
	}
	_, _ = prof.UpdateProfile(r.Context(), u)
	redirect(w, r, "/profile", &n)
}

// HandleProfileBody handles the height and weight form.
//
// HTTP: POST /profile/body
func (h *PageHandler) HandleProfileBody(w http.ResponseWriter, r *http.Request, user *model.User) {
	var n store.Notices
	height, errH := strconv.ParseFloat(r.FormValue("height"), 64)
	weight, errW := strconv.ParseFloat(r.FormValue("weight"), 64)
	if errH != nil || errW != nil {
		n.Notify(store.LevelError, "height and weight must be numbers")
		redirect(w, r, "/profile", &n)
		return
	}

	prof := store.NewProfileStore(h.repos.Profiles, h.repos.Stats, user, &n, h.logger)
	if _, _, err := prof.Load(r.Context()); err == nil {
		_, _ = prof.UpdateBodyMetric(r.Context(), height, weight)
	}
	redirect(w, r, "/profile", &n)
}
