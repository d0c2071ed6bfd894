package sensor

import (
	"context"

	"github.com/tspannhw/thermal-streamer/internal/domain"
)

// Producer supplies ordered batches of readings.  The streaming client does
// not care whether the readings come from physical sensors or a synthetic
// source; it only consumes this interface.
type Producer interface {
	ReadBatch(ctx context.Context, count int) (domain.Batch, error)
}
