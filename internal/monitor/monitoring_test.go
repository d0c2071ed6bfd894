package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/mux"
	"github.com/tspannhw/thermal-streamer/internal/config"
	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/channel"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/transport"
	"github.com/tspannhw/thermal-streamer/internal/stats"
)

func init() {
	logger.InitLogger()
}

func newMonitoredChannel(serviceURL string) *channel.Channel {
	cfg := &config.Config{
		Account:            "testacct",
		Database:           "SENSORDB",
		Schema:             "PUBLIC",
		Pipe:               "THERMAL_PIPE",
		ChannelName:        "thermal_channel",
		ControlPlaneUrl:    serviceURL,
		HttpRequestTimeout: 5 * time.Second,
	}
	return channel.NewChannel(cfg, transport.NewClient(cfg.HttpRequestTimeout, nil))
}

func TestHealthEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/streaming/hostname" {
			w.Write([]byte(r.Host))
			return
		}
		fmt.Fprint(w, `{"next_continuation_token": "cont-1", "channel_status": {"last_committed_offset_token": ""}}`)
	}))
	defer ts.Close()

	ch := newMonitoredChannel(ts.URL)
	sink := stats.NewSink()
	sink.RecordSuccess(10)

	router := mux.NewRouter()
	NewMonitoringServer(router, ch, sink).Routes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, recorder.Code, http.StatusOK)

	var body struct {
		ChannelState string `json:"channel_state"`
		RowsIngested uint64 `json:"rows_ingested"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("health response is not valid json: %s", err)
	}
	assert.Equal(t, body.ChannelState, "CLOSED")
	assert.Equal(t, body.RowsIngested, uint64(10))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	router := mux.NewRouter()
	NewMonitoringServer(router, newMonitoredChannel(ts.URL), stats.NewSink()).Routes()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, recorder.Code, http.StatusOK)
	if !strings.Contains(recorder.Body.String(), "go_goroutines") {
		t.Fatalf("metrics endpoint did not render prometheus metrics")
	}
}
