package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/wastenot/internal/model"
)

// PantryDB implements repository.PantryRepository.
type PantryDB struct {
	db *DB
}

// Pantry returns the pantry-items repository.
func (db *DB) Pantry() *PantryDB {
	return &PantryDB{db: db}
}

func nullDate(d *model.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func datePtr(ns sql.NullString) (*model.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := model.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a pantry item. ID and timestamps are assigned here.
func (p *PantryDB) Create(ctx context.Context, item *model.PantryItem) error {
	now := p.db.now()
	item.ID = xid.New().String()
	item.CreatedAt = now
	item.UpdatedAt = now

	var disposition sql.NullString
	if item.Disposition != nil {
		disposition = sql.NullString{String: string(*item.Disposition), Valid: true}
	}

	_, err := p.db.conn.ExecContext(ctx, p.db.q(`
		INSERT INTO pantry_items
			(id, user_id, name, quantity, unit, expiry_date, category, freshness, disposition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		item.ID, item.UserID, item.Name, item.Quantity, item.Unit, nullDate(item.ExpiryDate),
		string(item.Category), string(item.Freshness), disposition, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting pantry item: %w", err)
	}
	return nil
}

// ListByUser returns the user's items, newest first. Ties on created_at are
// broken by id, which is time-ordered.
func (p *PantryDB) ListByUser(ctx context.Context, userID string) ([]model.PantryItem, error) {
	rows, err := p.db.conn.QueryContext(ctx, p.db.q(`
		SELECT id, user_id, name, quantity, unit, expiry_date, category, freshness, disposition, created_at, updated_at
		FROM pantry_items
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("querying pantry items: %w", err)
	}
	defer rows.Close()

	items := []model.PantryItem{}
	for rows.Next() {
		var (
			it                  model.PantryItem
			expiry, disposition sql.NullString
			category, freshness string
		)
		if err := rows.Scan(&it.ID, &it.UserID, &it.Name, &it.Quantity, &it.Unit, &expiry,
			&category, &freshness, &disposition, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning pantry item: %w", err)
		}
		if it.ExpiryDate, err = datePtr(expiry); err != nil {
			return nil, fmt.Errorf("pantry item %s: %w", it.ID, err)
		}
		it.Category = model.Category(category)
		it.Freshness = model.Freshness(freshness)
		if disposition.Valid {
			d := model.Disposition(disposition.String)
			it.Disposition = &d
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pantry items: %w", err)
	}
	return items, nil
}

// SetStatus applies a status override to one of the user's items.
func (p *PantryDB) SetStatus(ctx context.Context, userID, id string, status model.Status) error {
	var (
		result sql.Result
		err    error
	)
	if status.IsTerminal() {
		result, err = p.db.conn.ExecContext(ctx, p.db.q(`
			UPDATE pantry_items SET disposition = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`),
			string(status), p.db.now(), id, userID,
		)
	} else {
		result, err = p.db.conn.ExecContext(ctx, p.db.q(`
			UPDATE pantry_items SET freshness = ?, disposition = NULL, updated_at = ?
			WHERE id = ? AND user_id = ?`),
			string(status), p.db.now(), id, userID,
		)
	}
	if err != nil {
		return fmt.Errorf("updating pantry item status: %w", err)
	}
	return requireRow(result, "pantry item", id)
}

// Delete removes one of the user's items. A missing row is not an error.
func (p *PantryDB) Delete(ctx context.Context, userID, id string) error {
	_, err := p.db.conn.ExecContext(ctx, p.db.q(`DELETE FROM pantry_items WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("deleting pantry item: %w", err)
	}
	return nil
}
