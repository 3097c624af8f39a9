package gateway

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/inspectctl/internal/inspect"
	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/link"
	"github.com/danmuck/inspectctl/internal/protocol"
	"github.com/danmuck/inspectctl/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrAddressRequired = errors.New("gateway: address required")
	ErrAccountRequired = errors.New("gateway: account required")
	ErrLoginRejected   = errors.New("gateway: login rejected")
	ErrNotConnected    = errors.New("gateway: not connected")
	ErrInvalidAnswer   = errors.New("gateway: invalid answer payload")
)

const eventBuffer = 16

type Config struct {
	Address  string
	Account  string
	Password string
	AuthCode string
	// ClientID names this process to the gateway; a random id is used when empty.
	ClientID           string
	Session            session.Config
	MaxConnectAttempts int
}

func DefaultConfig() Config {
	return Config{
		Session:            session.DefaultConfig(),
		MaxConnectAttempts: 3,
	}
}

// Session is a GameSession backed by one gateway connection at a time.
type Session struct {
	cfg    Config
	events chan inspect.Event

	mu     sync.Mutex
	conn   net.Conn
	cancel context.CancelFunc
	gen    uint64

	writeMu sync.Mutex
}

var _ inspect.GameSession = (*Session)(nil)

func New(cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	if strings.TrimSpace(cfg.Account) == "" {
		return nil, ErrAccountRequired
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		cfg.ClientID = "inspectctl-" + uuid.NewString()
	}
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Session.ValidateClientTransport(); err != nil {
		return nil, err
	}
	return &Session{
		cfg:    cfg,
		events: make(chan inspect.Event, eventBuffer),
	}, nil
}

func (s *Session) Events() <-chan inspect.Event {
	return s.events
}

// Login starts a connect attempt in the background, replacing any previous
// connection. The outcome is reported as EventReady or EventLoginFailed.
func (s *Session) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	go s.run(runCtx, s.gen)
	return nil
}

// Logout closes the current connection and stops any connect attempt.
// No EventDisconnected is emitted for a requested logout.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.dropLocked()
}

func (s *Session) dropLocked() error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Request writes one inspect.request. The answer arrives on Events.
func (s *Session) Request(ctx context.Context, ref link.Reference) error {
	req := session.InspectRequest{
		Owner:   ref.Owner(),
		Market:  ref.Market(),
		AssetID: ref.AssetID,
		ClassID: ref.ClassID,
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := time.Now().Add(s.cfg.Session.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := session.WriteInspectRequest(conn, req); err != nil {
		return err
	}
	log.Debug().Str("ref", ref.Token()).Msg("gateway.Request sent")
	return nil
}

func (s *Session) run(ctx context.Context, gen uint64) {
	conn, reader, err := s.connect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("addr", s.cfg.Address).Msg("gateway.run login failed")
			s.emit(ctx, inspect.Event{Kind: inspect.EventLoginFailed, Err: err})
		}
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	log.Info().Str("addr", s.cfg.Address).Str("account", s.cfg.Account).Msg("gateway.run session ready")
	s.emit(ctx, inspect.Event{Kind: inspect.EventReady})

	err = s.readLoop(ctx, reader)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()

	if ctx.Err() == nil {
		log.Warn().Err(err).Str("addr", s.cfg.Address).Msg("gateway.run connection lost")
		s.emit(ctx, inspect.Event{Kind: inspect.EventDisconnected, Err: err})
	}
}

func (s *Session) emit(ctx context.Context, ev inspect.Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) readLoop(ctx context.Context, reader *bufio.Reader) error {
	for {
		env, err := session.ReadEnvelope(reader)
		if err != nil {
			return err
		}
		if env.Type != session.TypeInspectAnswer {
			log.Warn().Str("type", env.Type).Msg("gateway.readLoop unexpected envelope ignored")
			continue
		}
		rec, err := DecodeAnswer(*env.Answer)
		if err != nil {
			// the in-flight request times out on its own
			log.Warn().Err(err).Msg("gateway.readLoop answer dropped")
			continue
		}
		s.emit(ctx, inspect.Event{Kind: inspect.EventAnswer, Item: rec})
	}
}

// DecodeAnswer parses the hex item codec bytes carried by an answer.
func DecodeAnswer(a session.InspectAnswer) (item.Record, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(a.Item))
	if err != nil {
		return item.Record{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	return protocol.DecodeItem(raw)
}

// EncodeAnswer renders rec the way the gateway sends it.
func EncodeAnswer(rec item.Record) session.InspectAnswer {
	return session.InspectAnswer{Item: strings.ToUpper(hex.EncodeToString(protocol.EncodeItem(rec)))}
}

func (s *Session) connect(ctx context.Context) (net.Conn, *bufio.Reader, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var attempt int
	for {
		attempt++
		conn, err := s.dial(ctx)
		if err == nil {
			var reader *bufio.Reader
			reader, err = s.login(ctx, conn)
			if err == nil {
				return conn, reader, nil
			}
			_ = conn.Close()
			if errors.Is(err, ErrLoginRejected) {
				return nil, nil, err
			}
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("addr", s.cfg.Address).Msg("gateway.connect attempt failed")
		if !s.shouldRetry(attempt) {
			return nil, nil, err
		}
		delay := session.NextBackoffDelay(s.cfg.Session.Backoff, attempt, rng)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Session) shouldRetry(attempt int) bool {
	if s.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < s.cfg.MaxConnectAttempts
}

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: s.cfg.Session.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return nil, err
	}
	if !s.cfg.Session.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := s.cfg.Session.ClientTLSConfig(s.cfg.Address)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, s.cfg.Session.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (s *Session) login(ctx context.Context, conn net.Conn) (*bufio.Reader, error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetDeadline(time.Now().Add(s.cfg.Session.HandshakeTimeout))
	reader := bufio.NewReader(conn)
	err := session.WriteLogin(conn, session.Login{
		Account:  s.cfg.Account,
		Password: s.cfg.Password,
		AuthCode: s.cfg.AuthCode,
		ClientID: s.cfg.ClientID,
	})
	if err != nil {
		return nil, err
	}
	ack, err := session.ReadLoginAck(reader)
	if err != nil {
		return nil, err
	}
	if ack.Status != session.AckStatusAccepted {
		return nil, fmt.Errorf("%w: code=%d message=%q", ErrLoginRejected, ack.Code, ack.Message)
	}
	_ = conn.SetDeadline(time.Time{})
	return reader, nil
}
