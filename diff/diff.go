package diff

import (
	"context"
	"image"
	"math"
	"time"

	"capture-analyze-pipeline/imaging"
	"capture-analyze-pipeline/storage"

	"github.com/apex/log"
)

// Engine computes the change-magnitude score between the current frame and
// the previously persisted one.
type Engine struct {
	store   storage.Store
	timeout time.Duration
}

func NewEngine(store storage.Store, timeout time.Duration) *Engine {
	return &Engine{store: store, timeout: timeout}
}

// Diff returns the mean absolute pixel difference between current and the
// frame stored under previousPath, as a percentage in [0,100] rounded to two
// decimals. Absence of history and every fetch/decode failure yield 0.0: a
// missing or unreadable baseline is not a change signal, and the diff step
// must never fail an ingestion.
func (e *Engine) Diff(ctx context.Context, current image.Image, previousPath string) float64 {
	if previousPath == "" {
		return 0.0
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	data, err := e.store.Download(ctx, previousPath)
	if err != nil {
		log.WithError(err).Warnf("Diff baseline fetch failed for %s, scoring 0.0", previousPath)
		return 0.0
	}

	previous, err := imaging.Decode(data)
	if err != nil {
		log.WithError(err).Warnf("Diff baseline decode failed for %s, scoring 0.0", previousPath)
		return 0.0
	}

	return Score(current, previous)
}

// Score compares two frames after canonical resizing. Exported separately so
// tests can exercise the arithmetic without a storage round trip.
func Score(current, previous image.Image) float64 {
	cur := imaging.ResizeCanonical(current)
	prev := imaging.ResizeCanonical(previous)

	var sum float64
	for y := 0; y < imaging.CanonicalHeight; y++ {
		for x := 0; x < imaging.CanonicalWidth; x++ {
			ci := cur.PixOffset(x, y)
			pi := prev.PixOffset(x, y)
			// R, G, B channels; alpha is always opaque after resize
			for ch := 0; ch < 3; ch++ {
				sum += math.Abs(float64(cur.Pix[ci+ch]) - float64(prev.Pix[pi+ch]))
			}
		}
	}

	mean := sum / float64(imaging.CanonicalWidth*imaging.CanonicalHeight*3)
	percentage := mean / 255.0 * 100.0
	return math.Round(percentage*100) / 100
}
