package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/tspannhw/thermal-streamer/internal/config"
	"github.com/tspannhw/thermal-streamer/internal/domain"
	"github.com/tspannhw/thermal-streamer/internal/platform/logger"
	"github.com/tspannhw/thermal-streamer/internal/snowflake/transport"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// OpenError is fatal: ingestion cannot proceed without an open channel.
type OpenError struct {
	ChannelName domain.ChannelName
	Err         error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("unable to open channel %s: %s", e.ChannelName, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// InvalidStateError is returned when an operation is attempted from a state
// the lifecycle does not allow it in.
type InvalidStateError struct {
	Operation string
	State     State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("operation %s not valid in channel state %s", e.Operation, e.State)
}

type openChannelResponse struct {
	NextContinuationToken string        `json:"next_continuation_token"`
	ChannelStatus         channelStatus `json:"channel_status"`
}

type channelStatus struct {
	LastCommittedOffsetToken string `json:"last_committed_offset_token"`
}

// Channel owns the lifecycle of the single ingestion session held by this
// process: CLOSED -> OPENING -> OPEN -> CLOSING -> CLOSED, with FAILED as a
// terminal state for unrecoverable errors.  The state, offset and
// continuation token are guarded by an internal mutex; submit callers are
// still expected to serialize Submit calls themselves.
type Channel struct {
	account         domain.AccountID
	database        string
	schema          string
	pipe            string
	name            domain.ChannelName
	controlPlaneURL string

	client *transport.Client

	// follows the control plane scheme, https in any real deployment
	ingestScheme string

	mutex             sync.Mutex
	state             State
	ingestHost        string
	offset            domain.OffsetToken
	continuationToken string
}

func NewChannel(cfg *config.Config, client *transport.Client) *Channel {
	ingestScheme := "https"
	if strings.HasPrefix(cfg.ControlPlaneUrl, "http://") {
		ingestScheme = "http"
	}

	return &Channel{
		account:         domain.AccountID(cfg.Account),
		database:        cfg.Database,
		schema:          cfg.Schema,
		pipe:            cfg.Pipe,
		name:            domain.ChannelName(cfg.ChannelName),
		controlPlaneURL: cfg.ControlPlaneUrl,
		client:          client,
		ingestScheme:    ingestScheme,
		state:           StateClosed,
		offset:          domain.EmptyOffset(),
	}
}

func (c *Channel) Name() domain.ChannelName {
	return c.name
}

func (c *Channel) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// DiscoverIngestHost resolves the data-plane host for the account through
// the control plane.  The result is cached for the process lifetime; hosts
// do not change mid-session.
func (c *Channel) DiscoverIngestHost(ctx context.Context) (string, error) {

	c.mutex.Lock()
	cached := c.ingestHost
	c.mutex.Unlock()

	if cached != "" {
		return cached, nil
	}

	discoveryURL := c.controlPlaneURL + "/v2/streaming/hostname"

	respBody, err := c.client.Do(ctx, http.MethodGet, discoveryURL, "", nil)
	if err != nil {
		return "", fmt.Errorf("ingest host discovery failed: %w", err)
	}

	host := strings.TrimSpace(string(respBody))
	if host == "" {
		return "", fmt.Errorf("ingest host discovery returned an empty host")
	}

	c.mutex.Lock()
	c.ingestHost = host
	c.mutex.Unlock()

	logger.Log.WithFields(logrus.Fields{"ingest_host": host}).Info("Ingest host discovered")

	return host, nil
}

// Open transitions CLOSED -> OPENING -> OPEN.  The service responds with the
// last committed offset token for the channel: empty for a channel that has
// never been written to, otherwise the position committed by the previous
// session.
func (c *Channel) Open(ctx context.Context) (domain.OffsetToken, error) {

	c.mutex.Lock()
	if c.state != StateClosed {
		state := c.state
		c.mutex.Unlock()
		return domain.OffsetToken{}, &InvalidStateError{Operation: "open", State: state}
	}
	c.state = StateOpening
	c.mutex.Unlock()

	logger.Log.WithFields(logrus.Fields{"channel": c.name}).Info("Opening channel")

	offset, continuationToken, err := c.openRemote(ctx)
	if err != nil {
		c.mutex.Lock()
		c.state = StateFailed
		c.mutex.Unlock()
		return domain.OffsetToken{}, &OpenError{ChannelName: c.name, Err: err}
	}

	c.mutex.Lock()
	c.state = StateOpen
	c.offset = offset
	c.continuationToken = continuationToken
	c.mutex.Unlock()

	logger.Log.WithFields(logrus.Fields{
		"channel": c.name,
		"offset":  offset.String(),
	}).Info("Channel open")

	return offset, nil
}

func (c *Channel) openRemote(ctx context.Context) (domain.OffsetToken, string, error) {

	host, err := c.DiscoverIngestHost(ctx)
	if err != nil {
		return domain.OffsetToken{}, "", err
	}

	openURL := fmt.Sprintf("%s://%s%s", c.ingestScheme, host, c.channelPath())

	respBody, err := c.client.Do(ctx, http.MethodPut, openURL, "application/json", []byte("{}"))
	if err != nil {
		return domain.OffsetToken{}, "", err
	}

	var openResponse openChannelResponse
	if err := json.Unmarshal(respBody, &openResponse); err != nil {
		return domain.OffsetToken{}, "", fmt.Errorf("unable to parse open channel response: %w", err)
	}

	offset, err := domain.ParseOffsetToken(openResponse.ChannelStatus.LastCommittedOffsetToken)
	if err != nil {
		return domain.OffsetToken{}, "", err
	}

	return offset, openResponse.NextContinuationToken, nil
}

// Close transitions OPEN -> CLOSING -> CLOSED.  Closing a channel that is
// not open is a no-op.
func (c *Channel) Close(ctx context.Context) error {

	c.mutex.Lock()
	if c.state != StateOpen {
		c.mutex.Unlock()
		return nil
	}
	c.state = StateClosing
	host := c.ingestHost
	c.mutex.Unlock()

	logger.Log.WithFields(logrus.Fields{"channel": c.name}).Info("Closing channel")

	closeURL := fmt.Sprintf("%s://%s%s", c.ingestScheme, host, c.channelPath())

	_, err := c.client.Do(ctx, http.MethodDelete, closeURL, "application/json", nil)

	// The session is over either way.  A failed close only means the server
	// will expire the channel on its own.
	c.mutex.Lock()
	c.state = StateClosed
	c.mutex.Unlock()

	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err, "channel": c.name}).Warn("Channel close failed")
		return err
	}

	return nil
}

// CurrentOffset returns the last locally observed committed offset.  Valid
// only while the channel is open.
func (c *Channel) CurrentOffset() (domain.OffsetToken, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != StateOpen {
		return domain.OffsetToken{}, &InvalidStateError{Operation: "currentOffset", State: c.state}
	}
	return c.offset, nil
}

// AdvanceOffset records the offset confirmed by a successful submit.  A
// proposal that does not strictly increase the offset is dropped and logged;
// the local offset never regresses.
func (c *Channel) AdvanceOffset(newOffset domain.OffsetToken) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !newOffset.After(c.offset) {
		logger.Log.WithFields(logrus.Fields{
			"channel":         c.name,
			"current_offset":  c.offset.String(),
			"proposed_offset": newOffset.String(),
		}).Error("Offset invariant violation: proposed offset does not advance the channel")
		return
	}

	c.offset = newOffset
}

func (c *Channel) ContinuationToken() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.continuationToken
}

func (c *Channel) SetContinuationToken(token string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if token != "" {
		c.continuationToken = token
	}
}

// AppendRowsURL builds the data-plane endpoint for submitting rows against
// the given offset token.
func (c *Channel) AppendRowsURL(offset domain.OffsetToken) (string, error) {
	c.mutex.Lock()
	host := c.ingestHost
	continuationToken := c.continuationToken
	c.mutex.Unlock()

	if host == "" {
		return "", fmt.Errorf("ingest host not discovered")
	}

	query := url.Values{}
	query.Set("continuationToken", continuationToken)
	query.Set("offsetToken", offset.String())

	return fmt.Sprintf("%s://%s/v2/streaming/data/databases/%s/schemas/%s/pipes/%s/channels/%s/rows?%s",
		c.ingestScheme, host,
		url.PathEscape(c.database), url.PathEscape(c.schema),
		url.PathEscape(c.pipe), url.PathEscape(c.name.String()),
		query.Encode()), nil
}

// Status fetches the committed offset as the server sees it.
func (c *Channel) Status(ctx context.Context) (domain.OffsetToken, error) {

	c.mutex.Lock()
	host := c.ingestHost
	c.mutex.Unlock()

	if host == "" {
		return domain.OffsetToken{}, fmt.Errorf("ingest host not discovered")
	}

	statusURL := fmt.Sprintf("%s://%s%s", c.ingestScheme, host, c.channelPath())

	respBody, err := c.client.Do(ctx, http.MethodGet, statusURL, "", nil)
	if err != nil {
		return domain.OffsetToken{}, err
	}

	var status openChannelResponse
	if err := json.Unmarshal(respBody, &status); err != nil {
		return domain.OffsetToken{}, fmt.Errorf("unable to parse channel status response: %w", err)
	}

	return domain.ParseOffsetToken(status.ChannelStatus.LastCommittedOffsetToken)
}

func (c *Channel) channelPath() string {
	return fmt.Sprintf("/v2/streaming/databases/%s/schemas/%s/pipes/%s/channels/%s",
		url.PathEscape(c.database), url.PathEscape(c.schema),
		url.PathEscape(c.pipe), url.PathEscape(c.name.String()))
}
