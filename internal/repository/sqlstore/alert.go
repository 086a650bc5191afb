package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/wastenot/internal/model"
	"github.com/sakif/wastenot/internal/repository"
)

// AlertDB implements repository.AlertRepository.
type AlertDB struct {
	db *DB
}

// Alerts returns the expiry-alert query repository.
func (db *DB) Alerts() *AlertDB {
	return &AlertDB{db: db}
}

// ExpiringBefore lists active items with an expiry date on or before cutoff,
// grouped by owner. YYYY-MM-DD text compares correctly as a string, so the
// filter works unchanged on both engines.
func (a *AlertDB) ExpiringBefore(ctx context.Context, cutoff model.Date) ([]repository.AlertRecipient, error) {
	rows, err := a.db.conn.QueryContext(ctx, a.db.q(`
		SELECT u.id, u.email, u.full_name, p.name, p.expiry_date
		FROM pantry_items p
		JOIN users u ON u.id = p.user_id
		WHERE p.disposition IS NULL
		  AND p.expiry_date IS NOT NULL
		  AND p.expiry_date <= ?
		ORDER BY u.id, p.expiry_date, p.name`), cutoff.String())
	if err != nil {
		return nil, fmt.Errorf("querying expiring items: %w", err)
	}
	defer rows.Close()

	var out []repository.AlertRecipient
	for rows.Next() {
		var userID, email, fullName, name, expiry string
		if err := rows.Scan(&userID, &email, &fullName, &name, &expiry); err != nil {
			return nil, fmt.Errorf("scanning expiring item: %w", err)
		}
		date, err := model.ParseDate(expiry)
		if err != nil {
			return nil, fmt.Errorf("expiring item %q: %w", name, err)
		}
		if len(out) == 0 || out[len(out)-1].UserID != userID {
			out = append(out, repository.AlertRecipient{UserID: userID, Email: email, FullName: fullName})
		}
		last := &out[len(out)-1]
		last.Items = append(last.Items, repository.ExpiringItem{Name: name, ExpiryDate: date})
	}
	return out, rows.Err()
}
