package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/channel"
	"github.com/tspannhw/thermal-streamer/internal/stats"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MonitoringServer exposes the prometheus metrics and a liveness view of
// the channel and counters.
type MonitoringServer struct {
	router  *mux.Router
	channel *channel.Channel
	sink    *stats.Sink
}

func NewMonitoringServer(r *mux.Router, ch *channel.Channel, sink *stats.Sink) *MonitoringServer {
	return &MonitoringServer{
		router:  r,
		channel: ch,
		sink:    sink,
	}
}

func (s *MonitoringServer) Routes() {
	s.router.Use(logger.AccessLoggerMiddleware)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
}

func (s *MonitoringServer) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		snapshot := s.sink.Snapshot()

		body := struct {
			ChannelState  string `json:"channel_state"`
			RowsIngested  uint64 `json:"rows_ingested"`
			BatchesOk     uint64 `json:"batches_ok"`
			BatchesFailed uint64 `json:"batches_failed"`
		}{
			ChannelState:  s.channel.State().String(),
			RowsIngested:  snapshot.RowsIngested,
			BatchesOk:     snapshot.BatchesOk,
			BatchesFailed: snapshot.BatchesFailed,
		}

		w.Header().Set("Content-Type", "application/json")

		if s.channel.State() == channel.StateFailed {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		json.NewEncoder(w).Encode(body)
	}
}
