package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/wastenot/internal/apperror"
	"github.com/sakif/wastenot/internal/model"
)

// DonationDB implements repository.DonationRepository.
type DonationDB struct {
	db *DB
}

// Donations returns the donation-records repository.
func (db *DB) Donations() *DonationDB {
	return &DonationDB{db: db}
}

// Create inserts a donation record.
func (d *DonationDB) Create(ctx context.Context, rec *model.DonationRecord) error {
	rec.ID = xid.New().String()
	rec.CreatedAt = d.db.now()

	_, err := d.db.conn.ExecContext(ctx, d.db.q(`
		INSERT INTO donation_records
			(id, user_id, item_id, item_name, organization, contact_info, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.UserID, nullString(rec.ItemID), rec.ItemName, rec.Organization,
		rec.ContactInfo, rec.Notes, string(rec.Status), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting donation record: %w", err)
	}
	return nil
}

// ListByUser returns the user's donations, newest first.
func (d *DonationDB) ListByUser(ctx context.Context, userID string) ([]model.DonationRecord, error) {
	rows, err := d.db.conn.QueryContext(ctx, d.db.q(`
		SELECT id, user_id, item_id, item_name, organization, contact_info, notes, status, created_at
		FROM donation_records
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("querying donation records: %w", err)
	}
	defer rows.Close()

	records := []model.DonationRecord{}
	for rows.Next() {
		var (
			r      model.DonationRecord
			itemID sql.NullString
			status string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &itemID, &r.ItemName, &r.Organization,
			&r.ContactInfo, &r.Notes, &status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning donation record: %w", err)
		}
		r.ItemID = stringPtr(itemID)
		r.Status = model.DonationStatus(status)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating donation records: %w", err)
	}
	return records, nil
}

// SetStatus changes the status of one of the user's donations.
func (d *DonationDB) SetStatus(ctx context.Context, userID, id string, status model.DonationStatus) error {
	result, err := d.db.conn.ExecContext(ctx, d.db.q(`
		UPDATE donation_records SET status = ? WHERE id = ? AND user_id = ?`),
		string(status), id, userID,
	)
	if err != nil {
		return fmt.Errorf("updating donation status: %w", err)
	}
	return requireRow(result, "donation", id)
}

// SaleDB implements repository.SaleRepository.
type SaleDB struct {
	db *DB
}

// Sales returns the sale-records repository.
func (db *DB) Sales() *SaleDB {
	return &SaleDB{db: db}
}

// Create inserts a sale record. Price goes through decimal's Valuer, so it
// lands as exact text in SQLite and as NUMERIC in Postgres.
func (s *SaleDB) Create(ctx context.Context, rec *model.SaleRecord) error {
	rec.ID = xid.New().String()
	rec.CreatedAt = s.db.now()

	_, err := s.db.conn.ExecContext(ctx, s.db.q(`
		INSERT INTO sell_records
			(id, user_id, item_id, item_name, price, platform, description, contact_method, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.UserID, nullString(rec.ItemID), rec.ItemName, rec.Price.StringFixed(2), rec.Platform,
		rec.Description, rec.ContactMethod, string(rec.Status), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting sale record: %w", err)
	}
	return nil
}

// ListByUser returns the user's sales, newest first.
func (s *SaleDB) ListByUser(ctx context.Context, userID string) ([]model.SaleRecord, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.q(`
		SELECT id, user_id, item_id, item_name, price, platform, description, contact_method, status, created_at
		FROM sell_records
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("querying sale records: %w", err)
	}
	defer rows.Close()

	records := []model.SaleRecord{}
	for rows.Next() {
		var (
			r      model.SaleRecord
			itemID sql.NullString
			status string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &itemID, &r.ItemName, &r.Price, &r.Platform,
			&r.Description, &r.ContactMethod, &status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning sale record: %w", err)
		}
		r.ItemID = stringPtr(itemID)
		r.Status = model.SaleStatus(status)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sale records: %w", err)
	}
	return records, nil
}

// SetStatus changes the status of one of the user's sales.
func (s *SaleDB) SetStatus(ctx context.Context, userID, id string, status model.SaleStatus) error {
	result, err := s.db.conn.ExecContext(ctx, s.db.q(`
		UPDATE sell_records SET status = ? WHERE id = ? AND user_id = ?`),
		string(status), id, userID,
	)
	if err != nil {
		return fmt.Errorf("updating sale status: %w", err)
	}
	return requireRow(result, "sale", id)
}

func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
