package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/model"
)

// ProfileDB implements repository.ProfileRepository and
// repository.StatsRepository. Both tables hold exactly one row per user.
type ProfileDB struct {
	db *DB
}

// Profiles returns the profile and stats repository.
func (db *DB) Profiles() *ProfileDB {
	return &ProfileDB{db: db}
}

// GetOrCreateProfile returns the user's profile, inserting defaults first.
//
// The INSERT ... ON CONFLICT DO NOTHING makes two concurrent first reads
// converge on one row: the loser's insert is a no-op and both SELECT the
// winner's row. Both SQLite (3.24+) and Postgres support this syntax.
func (p *ProfileDB) GetOrCreateProfile(ctx context.Context, defaults *model.UserProfile) (*model.UserProfile, error) {
	badges := defaults.Badges
	if badges == nil {
		badges = []string{}
	}
	badgeJSON, err := json.Marshal(badges)
	if err != nil {
		return nil, fmt.Errorf("encoding badges: %w", err)
	}

	var goal sql.NullString
	if defaults.HealthGoal != nil {
		goal = sql.NullString{String: string(*defaults.HealthGoal), Valid: true}
	}

	now := p.db.now()
	_, err = p.db.conn.ExecContext(ctx, p.db.q(`
		INSERT INTO user_profiles
			(id, user_id, full_name, height, weight, bmi, health_goal, badges, credits, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`),
		xid.New().String(), defaults.UserID, defaults.FullName, nullFloat(defaults.Height),
		nullFloat(defaults.Weight), nullFloat(defaults.BMI), goal, string(badgeJSON),
		defaults.Credits, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting default profile: %w", err)
	}

	return p.getProfile(ctx, defaults.UserID)
}

func (p *ProfileDB) getProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var (
		prof                model.UserProfile
		height, weight, bmi sql.NullFloat64
		goal                sql.NullString
		badges              string
	)
	err := p.db.conn.QueryRowContext(ctx, p.db.q(`
		SELECT id, user_id, full_name, height, weight, bmi, health_goal, badges, credits, created_at, updated_at
		FROM user_profiles WHERE user_id = ?`), userID,
	).Scan(&prof.ID, &prof.UserID, &prof.FullName, &height, &weight, &bmi, &goal,
		&badges, &prof.Credits, &prof.CreatedAt, &prof.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("profile", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	prof.Height, prof.Weight, prof.BMI = floatPtr(height), floatPtr(weight), floatPtr(bmi)
	if goal.Valid {
		g := model.HealthGoal(goal.String)
		prof.HealthGoal = &g
	}
	prof.Badges = []string{}
	if err := json.Unmarshal([]byte(badges), &prof.Badges); err != nil {
		return nil, fmt.Errorf("decoding badges for %s: %w", userID, err)
	}
	return &prof, nil
}

// UpdateProfile writes every mutable column of the user's profile.
func (p *ProfileDB) UpdateProfile(ctx context.Context, prof *model.UserProfile) error {
	badges := prof.Badges
	if badges == nil {
		badges = []string{}
	}
	badgeJSON, err := json.Marshal(badges)
	if err != nil {
		return fmt.Errorf("encoding badges: %w", err)
	}
	var goal sql.NullString
	if prof.HealthGoal != nil {
		goal = sql.NullString{String: string(*prof.HealthGoal), Valid: true}
	}

	prof.UpdatedAt = p.db.now()
	result, err := p.db.conn.ExecContext(ctx, p.db.q(`
		UPDATE user_profiles
		SET full_name = ?, height = ?, weight = ?, bmi = ?, health_goal = ?, badges = ?, credits = ?, updated_at = ?
		WHERE user_id = ?`),
		prof.FullName, nullFloat(prof.Height), nullFloat(prof.Weight), nullFloat(prof.BMI),
		goal, string(badgeJSON), prof.Credits, prof.UpdatedAt, prof.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return requireRow(result, "profile", prof.UserID)
}

// GetOrCreateStats returns the user's stats row, inserting defaults first.
func (p *ProfileDB) GetOrCreateStats(ctx context.Context, defaults *model.SustainabilityStats) (*model.SustainabilityStats, error) {
	now := p.db.now()
	_, err := p.db.conn.ExecContext(ctx, p.db.q(`
		INSERT INTO sustainability_stats
			(id, user_id, total_items, items_used, items_donated, items_sold, co2_saved, food_saved_kg, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`),
		xid.New().String(), defaults.UserID, defaults.TotalItems, defaults.ItemsUsed,
		defaults.ItemsDonated, defaults.ItemsSold, defaults.CO2Saved, defaults.FoodSavedKg, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting default stats: %w", err)
	}

	var s model.SustainabilityStats
	err = p.db.conn.QueryRowContext(ctx, p.db.q(`
		SELECT id, user_id, total_items, items_used, items_donated, items_sold, co2_saved, food_saved_kg, created_at, updated_at
		FROM sustainability_stats WHERE user_id = ?`), defaults.UserID,
	).Scan(&s.ID, &s.UserID, &s.TotalItems, &s.ItemsUsed, &s.ItemsDonated, &s.ItemsSold,
		&s.CO2Saved, &s.FoodSavedKg, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("stats", defaults.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	return &s, nil
}

// UpdateStats writes every counter of the user's stats row.
func (p *ProfileDB) UpdateStats(ctx context.Context, s *model.SustainabilityStats) error {
	s.UpdatedAt = p.db.now()
	result, err := p.db.conn.ExecContext(ctx, p.db.q(`
		UPDATE sustainability_stats
		SET total_items = ?, items_used = ?, items_donated = ?, items_sold = ?, co2_saved = ?, food_saved_kg = ?, updated_at = ?
		WHERE user_id = ?`),
		s.TotalItems, s.ItemsUsed, s.ItemsDonated, s.ItemsSold, s.CO2Saved, s.FoodSavedKg, s.UpdatedAt, s.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating stats: %w", err)
	}
	return requireRow(result, "stats", s.UserID)
}
