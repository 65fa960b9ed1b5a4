package llm

import "context"

// Client abstracts the vision model provider used by the classifier.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// AnalyzeImage takes raw JPEG bytes and an instruction string, and
	// returns the model's text response.
	AnalyzeImage(ctx context.Context, imageData []byte, instruction string) (string, error)
	// SourceName returns a short provider label (e.g., "Gemini").
	SourceName() string
}
