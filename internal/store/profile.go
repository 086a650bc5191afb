package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/repository"
)

// ProfileUpdate is a partial profile change; nil fields are left alone.
type ProfileUpdate struct {
	FullName   *string           `json:"fullName"`
	Height     *float64          `json:"height"`
	Weight     *float64          `json:"weight"`
	BMI        *float64          `json:"bmi"`
	HealthGoal *model.HealthGoal `json:"healthGoal"`
}

// StatsUpdate is a partial stats change; nil fields are left alone.
type StatsUpdate struct {
	TotalItems   *int64   `json:"totalItems"`
	ItemsUsed    *int64   `json:"itemsUsed"`
	ItemsDonated *int64   `json:"itemsDonated"`
	ItemsSold    *int64   `json:"itemsSold"`
	CO2Saved     *float64 `json:"co2Saved"`
	FoodSavedKg  *float64 `json:"foodSavedKg"`
}

// ProfileStore is one user's profile and sustainability stats.
type ProfileStore struct {
	profiles repository.ProfileRepository
	stats    repository.StatsRepository
	user     *model.User
	notify   Notifier
	logger   *slog.Logger

	mu      sync.RWMutex
	profile *model.UserProfile
	counts  *model.SustainabilityStats
}

// NewProfileStore creates a store for user. A nil user is allowed; every
// operation then fails with a precondition error.
func NewProfileStore(
	profiles repository.ProfileRepository,
	stats repository.StatsRepository,
	user *model.User,
	notify Notifier,
	logger *slog.Logger,
) *ProfileStore {
	if notify == nil {
		notify = Discard
	}
	return &ProfileStore{
		profiles: profiles,
		stats:    stats,
		user:     user,
		notify:   notify,
		logger:   logger.With(slog.String("store", "profile")),
	}
}

func (s *ProfileStore) requireUser() error {
	if s.user == nil || s.user.ID == "" {
		return apperror.PreconditionFailed("no signed-in user")
	}
	return nil
}

// Load fetches profile and stats, creating either with defaults if absent.
func (s *ProfileStore) Load(ctx context.Context) (*model.UserProfile, *model.SustainabilityStats, error) {
	if err := s.requireUser(); err != nil {
		return nil, nil, err
	}

	profile, err := s.profiles.GetOrCreateProfile(ctx, model.NewProfile(s.user.ID, s.user.DisplayName()))
	if err != nil {
		return nil, nil, s.loadFailed(err)
	}
	stats, err := s.stats.GetOrCreateStats(ctx, model.NewStats(s.user.ID))
	if err != nil {
		return nil, nil, s.loadFailed(err)
	}

	s.mu.Lock()
	s.profile, s.counts = profile, stats
	s.mu.Unlock()
	return s.Profile(), s.Stats(), nil
}

func (s *ProfileStore) loadFailed(err error) error {
	s.logger.Error("loading profile", slog.String("error", err.Error()))
	s.notify.Notify(LevelError, "Failed to load profile")
	return err
}

// Profile returns a copy of the loaded profile, or nil.
func (s *ProfileStore) Profile() *model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	p.Badges = append([]string{}, s.profile.Badges...)
	return &p
}

// Stats returns a copy of the loaded stats, or nil.
func (s *ProfileStore) Stats() *model.SustainabilityStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.counts == nil {
		return nil
	}
	c := *s.counts
	return &c
}

// UpdateProfile merges u into the loaded profile and persists it.
func (s *ProfileStore) UpdateProfile(ctx context.Context, u ProfileUpdate) (*model.UserProfile, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	next := s.Profile()
	if next == nil {
		return nil, apperror.PreconditionFailed("profile not loaded")
	}

	if u.FullName != nil {
		next.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.Height != nil {
		next.Height = u.Height
	}
	if u.Weight != nil {
		next.Weight = u.Weight
	}
	if u.BMI != nil {
		next.BMI = u.BMI
	}
	if u.HealthGoal != nil {
		if !u.HealthGoal.Valid() {
			err := apperror.ValidationFailed("healthGoal", "unknown health goal "+string(*u.HealthGoal))
			s.notify.Notify(LevelError, err.Error())
			return nil, err
		}
		next.HealthGoal = u.HealthGoal
	}

	if err := s.save(ctx, next); err != nil {
		s.notify.Notify(LevelError, "Failed to update profile")
		return nil, err
	}
	s.notify.Notify(LevelSuccess, "Profile updated")
	return s.Profile(), nil
}

func (s *ProfileStore) save(ctx context.Context, next *model.UserProfile) error {
	if err := s.profiles.UpdateProfile(ctx, next); err != nil {
		s.logger.Error("saving profile", slog.String("error", err.Error()))
		return err
	}
	s.mu.Lock()
	s.profile = next
	s.mu.Unlock()
	return nil
}

// UpdateBodyMetric stores height (cm), weight (kg) and the derived BMI.
func (s *ProfileStore) UpdateBodyMetric(ctx context.Context, heightCm, weightKg float64) (*model.UserProfile, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	if heightCm <= 0 || weightKg <= 0 {
		err := apperror.ValidationFailed("height", "height and weight must be positive")
		s.notify.Notify(LevelError, err.Error())
		return nil, err
	}
	bmi := model.BMI(heightCm, weightKg)
	return s.UpdateProfile(ctx, ProfileUpdate{Height: &heightCm, Weight: &weightKg, BMI: &bmi})
}

// AddCredits reads the stored balance and writes balance+amount.
//
// This is read-then-write, not an atomic increment: two concurrent calls can
// both read the same balance and one addition is lost. Sequential calls are
// exact.
func (s *ProfileStore) AddCredits(ctx context.Context, amount int64) (*model.UserProfile, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	if s.Profile() == nil {
		return nil, apperror.PreconditionFailed("profile not loaded")
	}
	if amount <= 0 {
		err := apperror.ValidationFailed("amount", "amount must be positive")
		s.notify.Notify(LevelError, err.Error())
		return nil, err
	}

	current, err := s.profiles.GetOrCreateProfile(ctx, model.NewProfile(s.user.ID, s.user.DisplayName()))
	if err != nil {
		s.logger.Error("reading credit balance", slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to add credits")
		return nil, err
	}
	current.Credits += amount

	if err := s.save(ctx, current); err != nil {
		s.notify.Notify(LevelError, "Failed to add credits")
		return nil, err
	}
	return s.Profile(), nil
}

// AwardBadge adds badge id once. Awarding a held badge is a no-op.
func (s *ProfileStore) AwardBadge(ctx context.Context, id string) (*model.UserProfile, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	next := s.Profile()
	if next == nil {
		return nil, apperror.PreconditionFailed("profile not loaded")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("badge", "badge id is required")
	}
	if next.HasBadge(id) {
		return next, nil
	}

	next.Badges = append(next.Badges, id)
	if err := s.save(ctx, next); err != nil {
		s.notify.Notify(LevelError, "Failed to award badge")
		return nil, err
	}
	return s.Profile(), nil
}

// UpdateStats merges u into the loaded stats and persists them.
func (s *ProfileStore) UpdateStats(ctx context.Context, u StatsUpdate) (*model.SustainabilityStats, error) {
	if err := s.requireUser(); err != nil {
		return nil, err
	}
	next := s.Stats()
	if next == nil {
		return nil, apperror.PreconditionFailed("stats not loaded")
	}

	setInt := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&next.TotalItems, u.TotalItems)
	setInt(&next.ItemsUsed, u.ItemsUsed)
	setInt(&next.ItemsDonated, u.ItemsDonated)
	setInt(&next.ItemsSold, u.ItemsSold)
	setFloat(&next.CO2Saved, u.CO2Saved)
	setFloat(&next.FoodSavedKg, u.FoodSavedKg)

	if err := s.stats.UpdateStats(ctx, next); err != nil {
		s.logger.Error("saving stats", slog.String("error", err.Error()))
		s.notify.Notify(LevelError, "Failed to update stats")
		return nil, err
	}
	s.mu.Lock()
	s.counts = next
	s.mu.Unlock()
	return s.Stats(), nil
}
