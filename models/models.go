package models

import "time"

// CaptureLog is one durable ingestion outcome.
type CaptureLog struct {
	ID             int64     `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	IsAnomaly      bool      `json:"is_anomaly"`
	Reason         string    `json:"reason"`
	DiffPercentage float64   `json:"diff_percentage"`
	ImageURL       *string   `json:"image_url"`
	ImagePath      *string   `json:"image_path"`
}

// Settings is the single-row watch configuration.
type Settings struct {
	ID               int64  `json:"id"`
	AnomaliesToWatch string `json:"anomalies_to_watch"`
}

// Recipient is one alert email list entry.
type Recipient struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// IngestResult is the summary returned to the capture device after one upload.
type IngestResult struct {
	Status    string  `json:"status"`
	Diff      float64 `json:"diff"`
	IsAnomaly bool    `json:"is_anomaly"`
	Reason    string  `json:"reason"`
}

// LogsPage is a paginated slice of capture logs.
type LogsPage struct {
	Logs  []CaptureLog `json:"logs"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
}

// Stats holds aggregate counters over the capture log.
type Stats struct {
	TotalLogs      int `json:"total_logs"`
	TotalAnomalies int `json:"total_anomalies"`
}

// CaptureEvent is published to RabbitMQ after each ingestion.
type CaptureEvent struct {
	LogID          int64     `json:"log_id"`
	CreatedAt      time.Time `json:"created_at"`
	IsAnomaly      bool      `json:"is_anomaly"`
	Reason         string    `json:"reason"`
	DiffPercentage float64   `json:"diff_percentage"`
	ImageURL       *string   `json:"image_url"`
}
