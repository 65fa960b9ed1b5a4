package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capture-analyze-pipeline/config"
	"capture-analyze-pipeline/database"
	"capture-analyze-pipeline/diff"
	"capture-analyze-pipeline/imaging"
	"capture-analyze-pipeline/metrics"
	"capture-analyze-pipeline/models"
	"capture-analyze-pipeline/parser"

	"github.com/apex/log"
)

// ErrInvalidImage marks an upload whose bytes could not be decoded. This is
// the only stage error that surfaces to the caller: nothing downstream is
// meaningful without a valid frame.
var ErrInvalidImage = errors.New("invalid image payload")

// fallbackVerdict is recorded whenever the classifier call or its response
// parsing fails. Classification failure must read as "no anomaly", never as
// an alert.
var fallbackVerdict = parser.Verdict{IsAnomaly: false, Reason: "analysis error"}

// Classifier yields a structured verdict for one frame.
type Classifier interface {
	Classify(ctx context.Context, imageData []byte, watchDescription string) (*parser.Verdict, error)
}

// Notifier raises an alert for an anomalous frame. Best-effort.
type Notifier interface {
	Notify(ctx context.Context, reason, imageURL string)
}

// Uploader persists the encoded frame and resolves its public reference.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// Publisher emits the ingestion outcome to the message bus. Best-effort.
type Publisher interface {
	Publish(v interface{}) error
}

// Service orchestrates one capture ingestion: decode, locate previous
// reference, diff, persist frame, classify, record, alert.
type Service struct {
	cfg        *config.Config
	db         *database.Database
	store      Uploader
	differ     *diff.Engine
	classifier Classifier
	notifier   Notifier
	publisher  Publisher

	now func() time.Time
}

func NewService(cfg *config.Config, db *database.Database, store Uploader,
	differ *diff.Engine, classifier Classifier, notifier Notifier, publisher Publisher) *Service {
	return &Service{
		cfg:        cfg,
		db:         db,
		store:      store,
		differ:     differ,
		classifier: classifier,
		notifier:   notifier,
		publisher:  publisher,
		now:        time.Now,
	}
}

// Ingest runs the capture pipeline over one raw upload. Stages run in strict
// order; every failure after a successful decode is absorbed locally so a
// flaky dependency cannot prevent the log record from being written. Only an
// undecodable payload or a failed record insert surface as errors.
func (s *Service) Ingest(ctx context.Context, raw []byte) (*models.IngestResult, error) {
	// Stage 1: decode
	frame, err := imaging.Decode(raw)
	if err != nil {
		metrics.IngestedTotal.WithLabelValues("invalid_image").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	// Stage 2: locate the reference written by the previous ingestion.
	// Must happen before the current record is inserted.
	previousPath, err := s.db.LatestImagePath(ctx)
	if err != nil {
		log.WithError(err).Warn("Previous frame lookup failed, diffing against nothing")
		previousPath = ""
	}

	// Stage 3: change score, fail-open to 0.0 inside the engine
	score := s.differ.Diff(ctx, frame, previousPath)
	metrics.DiffPercentage.Observe(score)

	// Stage 4: persist the frame; storage unavailability must not block
	// classification or logging
	var imageURL, imagePath *string
	encoded, err := imaging.EncodeJPEG(frame, s.cfg.JPEGQuality)
	if err != nil {
		log.WithError(err).Warn("Frame re-encode failed, keeping raw bytes for classification")
		encoded = raw
	} else {
		key := fmt.Sprintf("captures/%s.jpg", s.now().UTC().Format("20060102_150405"))
		uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
		err = s.store.Upload(uploadCtx, key, encoded, "image/jpeg")
		cancel()
		if err != nil {
			log.WithError(err).Warnf("Frame upload failed for %s, recording without storage refs", key)
			metrics.UploadErrorTotal.Inc()
		} else {
			url := s.store.PublicURL(key)
			imageURL = &url
			imagePath = &key
		}
	}

	// Stage 5: current watch description
	watch, err := s.db.WatchDescription(ctx)
	if err != nil {
		log.WithError(err).Warn("Settings read failed, using default watch description")
		watch = ""
	}
	if watch == "" {
		watch = s.cfg.DefaultWatchDescription
	}

	// Stage 6: classify; collapse any failure to the fail-closed default
	verdict := s.classify(ctx, encoded, watch)

	// Stage 7: the single durability point of the cycle
	record := &models.CaptureLog{
		IsAnomaly:      verdict.IsAnomaly,
		Reason:         verdict.Reason,
		DiffPercentage: score,
		ImageURL:       imageURL,
		ImagePath:      imagePath,
	}
	id, err := s.db.InsertLog(ctx, record)
	if err != nil {
		metrics.IngestedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to record ingestion: %w", err)
	}
	record.ID = id

	// Stage 8: alert, after the record is durable; dispatcher failures are
	// its own problem
	if verdict.IsAnomaly {
		metrics.AnomaliesTotal.Inc()
		url := ""
		if imageURL != nil {
			url = *imageURL
		}
		s.notifier.Notify(ctx, verdict.Reason, url)
	}

	// Stage 9: best-effort event publish
	s.publishEvent(record)

	metrics.IngestedTotal.WithLabelValues("ok").Inc()
	return &models.IngestResult{
		Status:    "ok",
		Diff:      score,
		IsAnomaly: verdict.IsAnomaly,
		Reason:    verdict.Reason,
	}, nil
}

func (s *Service) classify(ctx context.Context, imageData []byte, watch string) parser.Verdict {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()

	start := time.Now()
	verdict, err := s.classifier.Classify(ctx, imageData, watch)
	if err != nil {
		metrics.ClassifyDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.WithError(err).Warn("Classification failed, recording fail-closed verdict")
		return fallbackVerdict
	}
	metrics.ClassifyDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return *verdict
}

func (s *Service) publishEvent(record *models.CaptureLog) {
	if s.publisher == nil {
		return
	}
	event := models.CaptureEvent{
		LogID:          record.ID,
		CreatedAt:      s.now().UTC(),
		IsAnomaly:      record.IsAnomaly,
		Reason:         record.Reason,
		DiffPercentage: record.DiffPercentage,
		ImageURL:       record.ImageURL,
	}
	if err := s.publisher.Publish(event); err != nil {
		log.WithError(err).Warnf("Failed to publish capture event for log %d", record.ID)
	}
}
