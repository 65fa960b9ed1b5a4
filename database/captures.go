package database

import (
	"context"
	"database/sql"
	"fmt"

	"capture-analyze-pipeline/models"
)

// InsertLog appends one capture log record and returns its id.
// The record is immutable once written.
func (d *Database) InsertLog(ctx context.Context, rec *models.CaptureLog) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO logs (is_anomaly, reason, diff_percentage, image_url, image_path)
		VALUES (?, ?, ?, ?, ?)`,
		rec.IsAnomaly, rec.Reason, rec.DiffPercentage, rec.ImageURL, rec.ImagePath)
	if err != nil {
		return 0, fmt.Errorf("failed to insert capture log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted log id: %w", err)
	}
	return id, nil
}

// LatestImagePath returns the storage key recorded by the most recent prior
// ingestion, or "" when no history exists yet.
func (d *Database) LatestImagePath(ctx context.Context) (string, error) {
	var path sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT image_path FROM logs
		ORDER BY created_at DESC, id DESC
		LIMIT 1`).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest image path: %w", err)
	}
	if !path.Valid {
		return "", nil
	}
	return path.String, nil
}

// GetLog returns one capture log by id.
func (d *Database) GetLog(ctx context.Context, id int64) (*models.CaptureLog, error) {
	rec := &models.CaptureLog{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, created_at, is_anomaly, reason, diff_percentage, image_url, image_path
		FROM logs WHERE id = ?`, id).Scan(
		&rec.ID, &rec.CreatedAt, &rec.IsAnomaly, &rec.Reason,
		&rec.DiffPercentage, &rec.ImageURL, &rec.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get log %d: %w", id, err)
	}
	return rec, nil
}

// ListLogs returns one page of capture logs ordered by creation time
// descending, optionally filtered by anomaly flag, plus the total count
// matching the filter.
func (d *Database) ListLogs(ctx context.Context, page, perPage int, isAnomaly *bool) (*models.LogsPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	countQuery := "SELECT COUNT(*) FROM logs"
	listQuery := `
		SELECT id, created_at, is_anomaly, reason, diff_percentage, image_url, image_path
		FROM logs`
	args := []interface{}{}
	if isAnomaly != nil {
		countQuery += " WHERE is_anomaly = ?"
		listQuery += " WHERE is_anomaly = ?"
		args = append(args, *isAnomaly)
	}
	listQuery += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"

	var total int
	if err := d.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count logs: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, listQuery, append(args, perPage, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	logs := []models.CaptureLog{}
	for rows.Next() {
		var rec models.CaptureLog
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.IsAnomaly, &rec.Reason,
			&rec.DiffPercentage, &rec.ImageURL, &rec.ImagePath); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		logs = append(logs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating log rows: %w", err)
	}

	return &models.LogsPage{Logs: logs, Total: total, Page: page}, nil
}

// GetStats returns total and anomaly counts over the capture log.
func (d *Database) GetStats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{}
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&stats.TotalLogs); err != nil {
		return nil, fmt.Errorf("failed to count logs: %w", err)
	}
	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM logs WHERE is_anomaly = TRUE").Scan(&stats.TotalAnomalies); err != nil {
		return nil, fmt.Errorf("failed to count anomalies: %w", err)
	}
	return stats, nil
}

// WatchDescription reads anomalies_to_watch from the settings row. A missing
// row is not an error; the caller substitutes its static default.
func (d *Database) WatchDescription(ctx context.Context) (string, error) {
	var watch sql.NullString
	err := d.db.QueryRowContext(ctx,
		"SELECT anomalies_to_watch FROM settings LIMIT 1").Scan(&watch)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read settings: %w", err)
	}
	return watch.String, nil
}

// GetSettings returns the settings row, or nil when absent.
func (d *Database) GetSettings(ctx context.Context) (*models.Settings, error) {
	s := &models.Settings{}
	err := d.db.QueryRowContext(ctx,
		"SELECT id, anomalies_to_watch FROM settings LIMIT 1").Scan(&s.ID, &s.AnomaliesToWatch)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return s, nil
}

// UpdateSettings upserts the single settings row.
func (d *Database) UpdateSettings(ctx context.Context, anomaliesToWatch string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO settings (id, anomalies_to_watch) VALUES (1, ?)
		ON DUPLICATE KEY UPDATE anomalies_to_watch = VALUES(anomalies_to_watch)`,
		anomaliesToWatch)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// RecipientEmails returns the alert email addresses.
func (d *Database) RecipientEmails(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT email FROM email_list")
	if err != nil {
		return nil, fmt.Errorf("failed to query email list: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan email row: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating email rows: %w", err)
	}
	return emails, nil
}

// ListRecipients returns all email list entries.
func (d *Database) ListRecipients(ctx context.Context) ([]models.Recipient, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT id, email, name, created_at FROM email_list ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query email list: %w", err)
	}
	defer rows.Close()

	recipients := []models.Recipient{}
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.Email, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recipient row: %w", err)
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating recipient rows: %w", err)
	}
	return recipients, nil
}

// AddRecipient inserts one email list entry and returns its id.
func (d *Database) AddRecipient(ctx context.Context, email string, name *string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO email_list (email, name) VALUES (?, ?)", email, name)
	if err != nil {
		return 0, fmt.Errorf("failed to add recipient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted recipient id: %w", err)
	}
	return id, nil
}

// DeleteRecipient removes one email list entry by id.
func (d *Database) DeleteRecipient(ctx context.Context, id int64) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM email_list WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete recipient %d: %w", id, err)
	}
	return nil
}
