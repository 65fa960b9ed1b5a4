package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"capture-analyze-pipeline/classifier"
	"capture-analyze-pipeline/config"
	"capture-analyze-pipeline/database"
	"capture-analyze-pipeline/diff"
	"capture-analyze-pipeline/imaging"
	"capture-analyze-pipeline/stubllm"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

type fakeStore struct {
	objects   map[string][]byte
	uploadErr error
}

func (f *fakeStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) PublicURL(key string) string { return "http://store/bucket/" + key }

type recordingNotifier struct {
	calls  int
	reason string
	url    string
}

func (n *recordingNotifier) Notify(ctx context.Context, reason, imageURL string) {
	n.calls++
	n.reason = reason
	n.url = imageURL
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultWatchDescription: "Fire, smoke, intruder, open door",
		JPEGQuality:             85,
		StorageTimeout:          time.Second,
		AnalysisTimeout:         time.Second,
		MailTimeout:             time.Second,
	}
}

func sampleJPEG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	data, err := imaging.EncodeJPEG(img, 90)
	if err != nil {
		t.Fatalf("failed to encode sample frame: %v", err)
	}
	return data
}

func newTestService(t *testing.T, db *sql.DB, store *fakeStore, stub *stubllm.Client, notifier *recordingNotifier) *Service {
	t.Helper()
	wrapped := database.NewWithDB(db)
	svc := NewService(testConfig(), wrapped, store,
		diff.NewEngine(store, time.Second), classifier.New(stub), notifier, nil)
	svc.now = func() time.Time {
		return time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	}
	return svc
}

const expectedKey = "captures/20240601_103000.jpg"
const expectedURL = "http://store/bucket/" + expectedKey

func expectNoPrevious(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT image_path FROM logs").WillReturnError(sql.ErrNoRows)
}

func expectNoSettings(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT anomalies_to_watch FROM settings").WillReturnError(sql.ErrNoRows)
}

func TestIngestFirstCapture(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	expectNoPrevious(mock)
	expectNoSettings(mock)
	mock.ExpectExec("INSERT INTO logs").
		WithArgs(false, "nothing unusual in view", 0.0, expectedURL, expectedKey).
		WillReturnResult(sqlmock.NewResult(1, 1))

	notifier := &recordingNotifier{}
	svc := newTestService(t, db, &fakeStore{}, stubllm.NewClient(), notifier)

	result, err := svc.Ingest(context.Background(), sampleJPEG(t, color.RGBA{100, 100, 100, 255}))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.Status != "ok" {
		t.Errorf("Status = %q, want ok", result.Status)
	}
	if result.Diff != 0.0 {
		t.Errorf("Diff on first capture = %v, want 0.0", result.Diff)
	}
	if result.IsAnomaly {
		t.Error("expected non-anomalous result")
	}
	if notifier.calls != 0 {
		t.Errorf("notifier called %d times, want 0", notifier.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIngestRepeatCaptureScoresZero(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	frame := sampleJPEG(t, color.RGBA{100, 100, 100, 255})
	store := &fakeStore{objects: map[string][]byte{"captures/prev.jpg": frame}}

	mock.ExpectQuery("SELECT image_path FROM logs").
		WillReturnRows(sqlmock.NewRows([]string{"image_path"}).AddRow("captures/prev.jpg"))
	expectNoSettings(mock)
	mock.ExpectExec("INSERT INTO logs").
		WithArgs(false, "nothing unusual in view", sqlmock.AnyArg(), expectedURL, expectedKey).
		WillReturnResult(sqlmock.NewResult(2, 1))

	svc := newTestService(t, db, store, stubllm.NewClient(), &recordingNotifier{})

	result, err := svc.Ingest(context.Background(), frame)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	// Identical frame modulo JPEG round-trip noise.
	if result.Diff > 1.0 {
		t.Errorf("Diff for unchanged frame = %v, want near 0.0", result.Diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIngestUploadFailureStillRecords(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	expectNoPrevious(mock)
	expectNoSettings(mock)
	mock.ExpectExec("INSERT INTO logs").
		WithArgs(false, "nothing unusual in view", 0.0, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := &fakeStore{uploadErr: errors.New("bucket unavailable")}
	svc := newTestService(t, db, store, stubllm.NewClient(), &recordingNotifier{})

	result, err := svc.Ingest(context.Background(), sampleJPEG(t, color.RGBA{10, 20, 30, 255}))
	if err != nil {
		t.Fatalf("Ingest() with failing upload error = %v, want nil", err)
	}
	if result.Status != "ok" {
		t.Errorf("Status = %q, want ok", result.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIngestAnomalyDispatchesExactlyOnce(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	expectNoPrevious(mock)
	expectNoSettings(mock)
	mock.ExpectExec("INSERT INTO logs").
		WithArgs(true, "intruder at the gate", 0.0, expectedURL, expectedKey).
		WillReturnResult(sqlmock.NewResult(1, 1))

	notifier := &recordingNotifier{}
	stub := &stubllm.Client{Anomaly: true, Reason: "intruder at the gate"}
	svc := newTestService(t, db, &fakeStore{}, stub, notifier)

	result, err := svc.Ingest(context.Background(), sampleJPEG(t, color.RGBA{5, 5, 5, 255}))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !result.IsAnomaly {
		t.Error("expected anomalous result")
	}
	if notifier.calls != 1 {
		t.Errorf("notifier called %d times, want 1", notifier.calls)
	}
	if notifier.reason != "intruder at the gate" {
		t.Errorf("notifier reason = %q", notifier.reason)
	}
	if notifier.url != expectedURL {
		t.Errorf("notifier url = %q, want %q", notifier.url, expectedURL)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIngestClassifierFailureFailsClosed(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	expectNoPrevious(mock)
	expectNoSettings(mock)
	mock.ExpectExec("INSERT INTO logs").
		WithArgs(false, "analysis error", 0.0, expectedURL, expectedKey).
		WillReturnResult(sqlmock.NewResult(1, 1))

	notifier := &recordingNotifier{}
	stub := &stubllm.Client{Err: errors.New("model unavailable")}
	svc := newTestService(t, db, &fakeStore{}, stub, notifier)

	result, err := svc.Ingest(context.Background(), sampleJPEG(t, color.RGBA{77, 77, 77, 255}))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.IsAnomaly {
		t.Error("classifier failure must not read as anomaly")
	}
	if result.Reason != "analysis error" {
		t.Errorf("Reason = %q, want %q", result.Reason, "analysis error")
	}
	if notifier.calls != 0 {
		t.Errorf("notifier called %d times, want 0", notifier.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIngestInvalidImageAborts(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	svc := newTestService(t, db, &fakeStore{}, stubllm.NewClient(), &recordingNotifier{})

	_, err := svc.Ingest(context.Background(), []byte("definitely not an image"))
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("Ingest() error = %v, want ErrInvalidImage", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no database calls expected: %v", err)
	}
}

func TestIngestUsesStoredWatchDescription(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	expectNoPrevious(mock)
	mock.ExpectQuery("SELECT anomalies_to_watch FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"anomalies_to_watch"}).AddRow("Flooding, broken windows"))
	mock.ExpectExec("INSERT INTO logs").
		WithArgs(false, "nothing unusual in view", 0.0, expectedURL, expectedKey).
		WillReturnResult(sqlmock.NewResult(1, 1))

	svc := newTestService(t, db, &fakeStore{}, stubllm.NewClient(), &recordingNotifier{})

	if _, err := svc.Ingest(context.Background(), sampleJPEG(t, color.RGBA{1, 2, 3, 255})); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
