package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tspannhw/thermal-streamer/internal/config"
	"github.com/tspannhw/thermal-streamer/internal/domain"
	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/auth"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/channel"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/transport"
	"github.com/tspannhw/thermal-streamer/internal/stats"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// PermanentBatchError is a non-retryable, batch-scoped rejection (a 4xx
// other than an auth failure).  The batch is not re-queued; the caller
// decides whether to drop or resubmit it.
type PermanentBatchError struct {
	Offset    domain.OffsetToken
	BatchSize int
	Err       error
}

func (e *PermanentBatchError) Error() string {
	return fmt.Sprintf("batch of %d rows rejected at offset %s: %s", e.BatchSize, e.Offset, e.Err)
}

func (e *PermanentBatchError) Unwrap() error {
	return e.Err
}

// SubmitError is raised when transient retries are exhausted.  The channel
// stays open; the same batch may be resubmitted against the same offset.
type SubmitError struct {
	Attempts  int
	Offset    domain.OffsetToken
	BatchSize int
	Err       error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("batch of %d rows failed after %d attempts at offset %s: %s",
		e.BatchSize, e.Attempts, e.Offset, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

type appendRowsResponse struct {
	NextContinuationToken string `json:"next_continuation_token"`
}

// Ingestor serializes batches into wire requests, submits them against the
// offset in effect at submission time and advances the channel offset on
// confirmed success.
type Ingestor struct {
	channel        *channel.Channel
	client         *transport.Client
	tokens         auth.TokenProvider
	sink           *stats.Sink
	maxAttempts    int
	backoffInitial time.Duration
}

func NewIngestor(cfg *config.Config, ch *channel.Channel, client *transport.Client, tokens auth.TokenProvider, sink *stats.Sink) *Ingestor {
	return &Ingestor{
		channel:        ch,
		client:         client,
		tokens:         tokens,
		sink:           sink,
		maxAttempts:    cfg.SubmitMaxAttempts,
		backoffInitial: cfg.SubmitBackoffInitial,
	}
}

// Submit sends the batch as a single atomic unit.  On success the returned
// count equals the batch length and the channel offset has advanced by
// exactly that amount.  The service rejects a submit carrying a stale
// offset instead of applying it twice, so resubmitting after a transient
// failure is idempotent.
func (ing *Ingestor) Submit(ctx context.Context, batch domain.Batch) (int, error) {

	if len(batch) == 0 {
		return 0, nil
	}

	currentOffset, err := ing.channel.CurrentOffset()
	if err != nil {
		return 0, err
	}

	targetOffset := currentOffset.Advance(len(batch))

	body, err := serializeBatch(batch)
	if err != nil {
		return 0, fmt.Errorf("unable to serialize batch: %w", err)
	}

	submitLogger := logger.Log.WithFields(logrus.Fields{
		"channel":    ing.channel.Name(),
		"batch_size": len(batch),
		"offset":     targetOffset.String(),
	})

	backoffSchedule := backoff.NewExponentialBackOff()
	backoffSchedule.InitialInterval = ing.backoffInitial
	backoffSchedule.Reset()

	var lastErr error
	authRetried := false

	for attempt := 1; attempt <= ing.maxAttempts; {

		err := ing.appendRows(ctx, targetOffset, body)
		if err == nil {
			ing.channel.AdvanceOffset(targetOffset)
			ing.sink.RecordSuccess(len(batch))
			metrics.rowsIngestedCounter.Add(float64(len(batch)))
			metrics.batchesOkCounter.Inc()
			submitLogger.Debug("Batch accepted")
			return len(batch), nil
		}

		lastErr = err

		if transport.AuthFailure(err) {
			if authRetried {
				ing.recordFailure()
				return 0, &auth.AuthError{Message: "submit rejected after forced token refresh", Err: err}
			}
			submitLogger.WithFields(logrus.Fields{"error": err}).Warn("Submit rejected by auth, forcing token refresh")
			if _, refreshErr := ing.tokens.ForceRefresh(ctx); refreshErr != nil {
				ing.recordFailure()
				return 0, refreshErr
			}
			authRetried = true
			continue
		}

		if !transport.Retryable(err) {
			ing.recordFailure()
			return 0, &PermanentBatchError{Offset: targetOffset, BatchSize: len(batch), Err: err}
		}

		attempt++
		if attempt > ing.maxAttempts {
			break
		}

		metrics.submitRetryCounter.Inc()
		wait := backoffSchedule.NextBackOff()
		submitLogger.WithFields(logrus.Fields{
			"error":   err,
			"attempt": attempt,
			"backoff": wait,
		}).Warn("Transient submit failure, retrying")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			ing.recordFailure()
			return 0, ctx.Err()
		}
	}

	ing.recordFailure()
	return 0, &SubmitError{
		Attempts:  ing.maxAttempts,
		Offset:    targetOffset,
		BatchSize: len(batch),
		Err:       lastErr,
	}
}

func (ing *Ingestor) appendRows(ctx context.Context, targetOffset domain.OffsetToken, body []byte) error {

	appendURL, err := ing.channel.AppendRowsURL(targetOffset)
	if err != nil {
		return err
	}

	respBody, err := ing.client.Do(ctx, http.MethodPost, appendURL, "application/x-ndjson", body)
	if err != nil {
		return err
	}

	var appendResponse appendRowsResponse
	if err := json.Unmarshal(respBody, &appendResponse); err == nil {
		ing.channel.SetContinuationToken(appendResponse.NextContinuationToken)
	}

	return nil
}

func (ing *Ingestor) recordFailure() {
	ing.sink.RecordFailure()
	metrics.batchesFailedCounter.Inc()
}

// serializeBatch renders the batch as newline-delimited json, one wire
// record per reading.  Each record carries the typed columns plus the full
// original payload in raw_data when the producer did not set one.
func serializeBatch(batch domain.Batch) ([]byte, error) {
	var buf bytes.Buffer

	for _, reading := range batch {
		if reading.RawData == nil {
			plain, err := json.Marshal(reading)
			if err != nil {
				return nil, err
			}
			raw := map[string]interface{}{}
			if err := json.Unmarshal(plain, &raw); err != nil {
				return nil, err
			}
			reading.RawData = raw
		}

		row, err := json.Marshal(reading)
		if err != nil {
			return nil, err
		}
		buf.Write(row)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}
