package stats

import (
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
)

func init() {
	logger.InitLogger()
}

func TestSinkCounters(t *testing.T) {
	sink := NewSink()

	sink.RecordSuccess(10)
	sink.RecordSuccess(5)
	sink.RecordFailure()

	snapshot := sink.Snapshot()
	assert.Equal(t, snapshot.RowsIngested, uint64(15))
	assert.Equal(t, snapshot.BatchesOk, uint64(2))
	assert.Equal(t, snapshot.BatchesFailed, uint64(1))
}

func TestSinkConcurrentAccess(t *testing.T) {
	sink := NewSink()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sink.RecordSuccess(1)
				sink.RecordFailure()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sink.Snapshot()
			}
		}()
	}
	wg.Wait()

	snapshot := sink.Snapshot()
	assert.Equal(t, snapshot.RowsIngested, uint64(1000))
	assert.Equal(t, snapshot.BatchesOk, uint64(1000))
	assert.Equal(t, snapshot.BatchesFailed, uint64(1000))
}
