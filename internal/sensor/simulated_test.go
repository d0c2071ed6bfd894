package sensor

import (
	"context"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
)

func init() {
	logger.InitLogger()
}

func TestReadBatchCount(t *testing.T) {
	producer := NewSimulatedProducer()

	batch, err := producer.ReadBatch(context.Background(), 5)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(batch), 5)
}

func TestReadingsArePopulated(t *testing.T) {
	producer := NewSimulatedProducer()

	batch, err := producer.ReadBatch(context.Background(), 3)
	assert.Equal(t, err, nil)

	seen := map[string]bool{}
	for _, reading := range batch {
		if reading.UUID == "" || reading.RowID == "" {
			t.Fatalf("reading is missing identifiers: %+v", reading)
		}
		if seen[reading.RowID] {
			t.Fatalf("duplicate row id: %s", reading.RowID)
		}
		seen[reading.RowID] = true

		if reading.Temperature == 0 || reading.Pressure == 0 || reading.CO2 == 0 {
			t.Fatalf("reading is missing sensor values: %+v", reading)
		}
		if reading.TS == 0 || reading.SystemTime == "" || reading.DatetimeStamp == "" {
			t.Fatalf("reading is missing timestamps: %+v", reading)
		}
	}
}

func TestReadBatchHonorsCancellation(t *testing.T) {
	producer := NewSimulatedProducer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := producer.ReadBatch(ctx, 5)
	if err == nil {
		t.Fatalf("expected context error, got none")
	}
}
