package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"capture-analyze-pipeline/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
	d    *Database
)

func setUp() {
	db, mock, _ = sqlmock.New()
	d = NewWithDB(db)
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func strPtr(s string) *string { return &s }

func TestInsertLog(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO logs").
			WithArgs(true, "intruder", 12.34, "http://store/b/captures/a.jpg", "captures/a.jpg").
			WillReturnResult(sqlmock.NewResult(7, 1))

		id, err := d.InsertLog(context.Background(), &models.CaptureLog{
			IsAnomaly:      true,
			Reason:         "intruder",
			DiffPercentage: 12.34,
			ImageURL:       strPtr("http://store/b/captures/a.jpg"),
			ImagePath:      strPtr("captures/a.jpg"),
		})
		if err != nil {
			t.Fatalf("InsertLog() error = %v", err)
		}
		if id != 7 {
			t.Errorf("InsertLog() id = %d, want 7", id)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestInsertLogNilRefs(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO logs").
			WithArgs(false, "analysis error", 0.0, nil, nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		_, err := d.InsertLog(context.Background(), &models.CaptureLog{
			Reason: "analysis error",
		})
		if err != nil {
			t.Fatalf("InsertLog() error = %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestLatestImagePath(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT image_path FROM logs").
			WillReturnRows(sqlmock.NewRows([]string{"image_path"}).AddRow("captures/last.jpg"))

		path, err := d.LatestImagePath(context.Background())
		if err != nil {
			t.Fatalf("LatestImagePath() error = %v", err)
		}
		if path != "captures/last.jpg" {
			t.Errorf("LatestImagePath() = %q, want captures/last.jpg", path)
		}
	})
}

func TestLatestImagePathEmptyHistory(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT image_path FROM logs").WillReturnError(sql.ErrNoRows)

		path, err := d.LatestImagePath(context.Background())
		if err != nil {
			t.Fatalf("LatestImagePath() error = %v", err)
		}
		if path != "" {
			t.Errorf("LatestImagePath() = %q, want empty", path)
		}
	})
}

func TestLatestImagePathNullColumn(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT image_path FROM logs").
			WillReturnRows(sqlmock.NewRows([]string{"image_path"}).AddRow(nil))

		path, err := d.LatestImagePath(context.Background())
		if err != nil {
			t.Fatalf("LatestImagePath() error = %v", err)
		}
		if path != "" {
			t.Errorf("LatestImagePath() = %q, want empty for NULL column", path)
		}
	})
}

func TestListLogsWithAnomalyFilter(t *testing.T) {
	it(func() {
		created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM logs WHERE is_anomaly").
			WithArgs(true).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT id, created_at, is_anomaly, reason, diff_percentage, image_url, image_path").
			WithArgs(true, 20, 0).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "created_at", "is_anomaly", "reason", "diff_percentage", "image_url", "image_path"}).
				AddRow(3, created, true, "intruder", 42.5, "http://u", "captures/p.jpg"))

		filter := true
		page, err := d.ListLogs(context.Background(), 1, 20, &filter)
		if err != nil {
			t.Fatalf("ListLogs() error = %v", err)
		}
		if page.Total != 1 || len(page.Logs) != 1 {
			t.Fatalf("ListLogs() total=%d len=%d, want 1/1", page.Total, len(page.Logs))
		}
		if !page.Logs[0].IsAnomaly || page.Logs[0].Reason != "intruder" {
			t.Errorf("unexpected record: %+v", page.Logs[0])
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestGetStats(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM logs").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM logs WHERE is_anomaly = TRUE").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		stats, err := d.GetStats(context.Background())
		if err != nil {
			t.Fatalf("GetStats() error = %v", err)
		}
		if stats.TotalLogs != 10 || stats.TotalAnomalies != 3 {
			t.Errorf("GetStats() = %+v, want 10/3", stats)
		}
	})
}

func TestWatchDescriptionFallsBackWhenAbsent(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT anomalies_to_watch FROM settings").WillReturnError(sql.ErrNoRows)

		watch, err := d.WatchDescription(context.Background())
		if err != nil {
			t.Fatalf("WatchDescription() error = %v", err)
		}
		if watch != "" {
			t.Errorf("WatchDescription() = %q, want empty when row absent", watch)
		}
	})
}

func TestUpdateSettings(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO settings").
			WithArgs("Fire, theft").
			WillReturnResult(sqlmock.NewResult(1, 1))

		if err := d.UpdateSettings(context.Background(), "Fire, theft"); err != nil {
			t.Fatalf("UpdateSettings() error = %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestRecipientCRUD(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO email_list").
			WithArgs("ops@example.com", "Ops").
			WillReturnResult(sqlmock.NewResult(5, 1))
		mock.ExpectQuery("SELECT id, email, name, created_at FROM email_list").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "created_at"}).
				AddRow(5, "ops@example.com", "Ops", time.Now()))
		mock.ExpectExec("DELETE FROM email_list WHERE id").
			WithArgs(5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		id, err := d.AddRecipient(context.Background(), "ops@example.com", strPtr("Ops"))
		if err != nil {
			t.Fatalf("AddRecipient() error = %v", err)
		}
		if id != 5 {
			t.Errorf("AddRecipient() id = %d, want 5", id)
		}

		recipients, err := d.ListRecipients(context.Background())
		if err != nil {
			t.Fatalf("ListRecipients() error = %v", err)
		}
		if len(recipients) != 1 || recipients[0].Email != "ops@example.com" {
			t.Errorf("ListRecipients() = %+v", recipients)
		}

		if err := d.DeleteRecipient(context.Background(), 5); err != nil {
			t.Fatalf("DeleteRecipient() error = %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}
