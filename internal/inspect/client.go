package inspect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/inspectctl/internal/observability"
	"github.com/rs/zerolog/log"
)

var errSessionLost = errors.New("inspect: session events closed")

// Client owns one GameSession and serializes every lookup through its queue.
// One Client per game account; the constructing collaborator enforces that.
type Client struct {
	cfg     Config
	session GameSession

	// lifecycle serializes Connect, Disconnect and Close.
	lifecycle sync.Mutex

	mu           sync.Mutex
	state        SessionState
	handshake    chan error
	queue        []*queueItem
	draining     bool
	inflight     *inflight
	lastResolved time.Time
	// owed counts answers still due from requests that timed out on this
	// connection.
	owed         int
	closed       bool

	done     chan struct{}
	pumpDone chan struct{}
}

// inflight is the single outstanding request and its answer slot.
type inflight struct {
	itemID string
	answer chan Result
}

func New(cfg Config, session GameSession) *Client {
	c := &Client{
		cfg:      cfg.WithDefaults(),
		session:  session,
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	observability.SetSessionState(int(Disconnected))
	go c.pump()
	return c
}

func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) IsReady() bool {
	return c.State() == Ready
}

// Connect logs the session in and waits for the handshake. On failure or
// timeout the client stays Disconnected. Connect on a Ready client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.state == Ready {
		c.mu.Unlock()
		return nil
	}
	hs := make(chan error, 1)
	c.handshake = hs
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	log.Info().Dur("timeout", c.cfg.ConnectTimeout).Msg("inspect.Connect login")
	if err := c.session.Login(ctx); err != nil {
		c.abandonHandshake(hs)
		return fmt.Errorf("%w: %v", ErrSessionConnectFailed, err)
	}

	timer := time.NewTimer(c.cfg.ConnectTimeout)
	defer timer.Stop()

	var cause error
	select {
	case err := <-hs:
		if err == nil {
			log.Info().Msg("inspect.Connect session ready")
			return nil
		}
		log.Warn().Err(err).Msg("inspect.Connect login failed")
		return fmt.Errorf("%w: %v", ErrSessionConnectFailed, err)
	case <-timer.C:
		cause = fmt.Errorf("no handshake within %s", c.cfg.ConnectTimeout)
	case <-ctx.Done():
		cause = ctx.Err()
	case <-c.done:
		return ErrClientClosed
	}

	if c.abandonHandshake(hs) {
		return nil
	}
	log.Warn().Err(cause).Msg("inspect.Connect abandoned")
	_ = c.session.Logout()
	return fmt.Errorf("%w: %v", ErrSessionConnectFailed, cause)
}

// abandonHandshake gives up on hs. It reports true when the pump already
// completed the handshake successfully.
func (c *Client) abandonHandshake(hs chan error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handshake == hs {
		c.handshake = nil
		c.setStateLocked(Disconnected)
		return false
	}
	select {
	case err := <-hs:
		return err == nil
	default:
		return false
	}
}

// Disconnect drops the session. Queued items stay queued; the in-flight item,
// if any, resolves with ErrSessionNotReady.
func (c *Client) Disconnect() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	prev := c.state
	c.markDisconnectedLocked(ErrSessionNotReady)
	c.mu.Unlock()

	if prev == Disconnected {
		return nil
	}
	log.Info().Str("from", prev.String()).Msg("inspect.Disconnect")
	return c.session.Logout()
}

// Close disconnects, stops the background goroutines and fails every queued
// item with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.queue
	c.queue = nil
	prev := c.state
	c.markDisconnectedLocked(ErrClientClosed)
	c.mu.Unlock()

	close(c.done)
	<-c.pumpDone
	for _, qi := range pending {
		qi.resolve(Result{Err: ErrClientClosed}, outcomeClosed, 0)
	}
	observability.SetQueueDepth(0)

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if prev == Disconnected {
		return nil
	}
	return c.session.Logout()
}

func (c *Client) setStateLocked(s SessionState) {
	if c.state == s {
		return
	}
	c.state = s
	observability.SetSessionState(int(s))
}

func (c *Client) markDisconnectedLocked(inflightErr error) {
	c.setStateLocked(Disconnected)
	c.owed = 0
	if c.handshake != nil {
		c.handshake <- ErrSessionNotReady
		c.handshake = nil
	}
	if c.inflight != nil {
		c.inflight.answer <- Result{Err: inflightErr}
		c.inflight = nil
	}
}

// pump routes session events to the handshake and in-flight waiters.
func (c *Client) pump() {
	defer close(c.pumpDone)
	events := c.session.Events()
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-events:
			if !ok {
				c.handleEvent(Event{Kind: EventDisconnected, Err: errSessionLost})
				return
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Client) settleOwedLocked() {
	if c.owed > 0 {
		c.owed--
	}
}

func (c *Client) handleEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case EventReady:
		if c.handshake == nil {
			log.Warn().Str("state", c.state.String()).Msg("inspect.pump ready without pending connect ignored")
			return
		}
		c.setStateLocked(Ready)
		c.handshake <- nil
		c.handshake = nil
		c.kickLocked()
	case EventLoginFailed:
		if c.handshake == nil {
			return
		}
		err := ev.Err
		if err == nil {
			err = errors.New("login rejected")
		}
		c.setStateLocked(Disconnected)
		c.handshake <- err
		c.handshake = nil
	case EventAnswer:
		c.deliverAnswerLocked(ev)
	case EventDisconnected:
		log.Warn().Err(ev.Err).Str("from", c.state.String()).Msg("inspect.pump session disconnected")
		c.markDisconnectedLocked(ErrSessionNotReady)
	}
}

// deliverAnswerLocked hands ev to the in-flight request unless it belongs to
// an earlier request that timed out.
func (c *Client) deliverAnswerLocked(ev Event) {
	if c.inflight == nil {
		c.settleOwedLocked()
		log.Warn().Int("owed", c.owed).Msg("inspect.pump answer with no request in flight discarded")
		return
	}
	id, hasID := ev.Item.ItemID.Get()
	if hasID && strconv.FormatUint(id, 10) != c.inflight.itemID {
		c.settleOwedLocked()
		log.Warn().
			Uint64("answer_item", id).
			Str("inflight_item", c.inflight.itemID).
			Msg("inspect.pump stale answer discarded")
		return
	}
	if !hasID && c.owed > 0 {
		// an id-less answer is attributed to the oldest timed-out request
		c.owed--
		log.Warn().
			Str("inflight_item", c.inflight.itemID).
			Int("owed", c.owed).
			Msg("inspect.pump late answer without item id discarded")
		return
	}
	c.inflight.answer <- Result{Item: ev.Item}
	c.inflight = nil
}
