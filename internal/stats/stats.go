package stats

import (
	"sync"
	"time"

	"github.com/tspannhw/thermal-streamer/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// Snapshot is a consistent point-in-time view of the ingestion counters.
type Snapshot struct {
	RowsIngested  uint64
	BatchesOk     uint64
	BatchesFailed uint64
}

// Sink accumulates monotonic ingestion counters.  Safe for concurrent use.
type Sink struct {
	mutex         sync.Mutex
	rowsIngested  uint64
	batchesOk     uint64
	batchesFailed uint64
	startTime     time.Time
}

func NewSink() *Sink {
	return &Sink{startTime: time.Now()}
}

func (s *Sink) RecordSuccess(rows int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rowsIngested += uint64(rows)
	s.batchesOk++
}

func (s *Sink) RecordFailure() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.batchesFailed++
}

func (s *Sink) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return Snapshot{
		RowsIngested:  s.rowsIngested,
		BatchesOk:     s.batchesOk,
		BatchesFailed: s.batchesFailed,
	}
}

// LogReport writes the periodic operator report.
func (s *Sink) LogReport() {
	s.mutex.Lock()
	snapshot := Snapshot{
		RowsIngested:  s.rowsIngested,
		BatchesOk:     s.batchesOk,
		BatchesFailed: s.batchesFailed,
	}
	elapsed := time.Since(s.startTime)
	s.mutex.Unlock()

	logger.Log.WithFields(logrus.Fields{
		"rows_ingested":  snapshot.RowsIngested,
		"batches_ok":     snapshot.BatchesOk,
		"batches_failed": snapshot.BatchesFailed,
		"uptime":         elapsed.Round(time.Second).String(),
	}).Info("Ingestion statistics")
}
