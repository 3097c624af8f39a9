// Package gatewaysim is an in-process game-coordinator gateway for local
// development and tests. It speaks the same login and inspect envelopes as a
// real gateway sidecar and answers from a fixture table.
package gatewaysim

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/protocol"
	"github.com/danmuck/inspectctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

const (
	codeBadLogin     = 1001
	codeBadPassword  = 1002
	codeUnknownLogin = 1003
)

type Config struct {
	// Accounts maps account to password. Empty accepts every login.
	Accounts         map[string]string
	AnswerDelay      time.Duration
	HandshakeTimeout time.Duration
	// Synthesize answers unknown assets with a record carrying only ItemID.
	Synthesize bool
	// Silent reads requests but never answers.
	Silent bool
}

type Simulator struct {
	cfg Config

	mu       sync.Mutex
	items    map[string]item.Record
	requests []session.InspectRequest
	logins   []session.Login

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	active  atomic.Int64
}

func New(cfg Config) *Simulator {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	return &Simulator{
		cfg:   cfg,
		items: make(map[string]item.Record),
		conns: make(map[net.Conn]struct{}),
	}
}

// Put registers the answer for assetID.
func (s *Simulator) Put(assetID string, rec item.Record) {
	s.mu.Lock()
	s.items[assetID] = rec
	s.mu.Unlock()
}

// LoadFixtures reads a JSON object mapping asset id to item record.
func (s *Simulator) LoadFixtures(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var fixtures map[string]item.Record
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return 0, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	for asset, rec := range fixtures {
		s.Put(asset, rec)
	}
	return len(fixtures), nil
}

func (s *Simulator) Requests() []session.InspectRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.InspectRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Simulator) Logins() []session.Login {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Login, len(s.logins))
	copy(out, s.logins)
	return out
}

// ActiveConnections counts logged-in or handshaking clients.
func (s *Simulator) ActiveConnections() int {
	return int(s.active.Load())
}

// Serve accepts clients until ctx ends or ln is closed.
func (s *Simulator) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.DropConnections()
		_ = ln.Close()
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("gatewaysim.Serve listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(conn)
	}
}

// DropConnections closes every client connection, as a gateway restart would.
func (s *Simulator) DropConnections() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

func (s *Simulator) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.active.Add(1)
	log.Debug().Str("remote", remote).Int64("active", active).Msg("gatewaysim client connected")
	defer func() {
		remaining := s.active.Add(-1)
		log.Debug().Str("remote", remote).Int64("active", remaining).Msg("gatewaysim client disconnected")
	}()

	reader := bufio.NewReader(conn)
	ack := s.handleLogin(conn, reader)
	if err := session.WriteLoginAck(conn, ack); err != nil || ack.Status != session.AckStatusAccepted {
		return
	}
	_ = conn.SetDeadline(time.Time{})

	for {
		env, err := session.ReadEnvelope(reader)
		if err != nil {
			return
		}
		if env.Type != session.TypeInspectRequest {
			log.Warn().Str("type", env.Type).Msg("gatewaysim unexpected envelope")
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, *env.Request)
		s.mu.Unlock()
		if s.cfg.Silent {
			continue
		}

		answer, ok := s.answerFor(env.Request.AssetID)
		if !ok {
			log.Debug().Str("asset", env.Request.AssetID).Msg("gatewaysim unknown asset not answered")
			continue
		}
		if s.cfg.AnswerDelay > 0 {
			time.Sleep(s.cfg.AnswerDelay)
		}
		if err := session.WriteInspectAnswer(conn, answer); err != nil {
			return
		}
	}
}

func (s *Simulator) handleLogin(conn net.Conn, reader *bufio.Reader) session.LoginAck {
	_ = conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	now := uint64(time.Now().UnixMilli())

	login, err := session.ReadLogin(reader)
	if err != nil {
		log.Warn().Err(err).Msg("gatewaysim.handleLogin read failed")
		return session.LoginAck{Status: session.AckStatusRejected, Code: codeBadLogin, Message: "invalid login payload", TimestampMS: now}
	}
	s.mu.Lock()
	s.logins = append(s.logins, login)
	s.mu.Unlock()

	if len(s.cfg.Accounts) > 0 {
		want, known := s.cfg.Accounts[login.Account]
		if !known {
			return session.LoginAck{Status: session.AckStatusRejected, Code: codeUnknownLogin, Message: "unknown account", TimestampMS: now}
		}
		if want != login.Password {
			return session.LoginAck{Status: session.AckStatusRejected, Code: codeBadPassword, Message: "bad credentials", TimestampMS: now}
		}
	}
	return session.LoginAck{Status: session.AckStatusAccepted, Message: "logged in", TimestampMS: now}
}

func (s *Simulator) answerFor(assetID string) (session.InspectAnswer, bool) {
	s.mu.Lock()
	rec, ok := s.items[assetID]
	s.mu.Unlock()
	if !ok {
		if !s.cfg.Synthesize {
			return session.InspectAnswer{}, false
		}
		id, err := strconv.ParseUint(assetID, 10, 64)
		if err != nil {
			return session.InspectAnswer{}, false
		}
		rec = item.Record{ItemID: item.Some(id)}
	}
	return session.InspectAnswer{Item: strings.ToUpper(hex.EncodeToString(protocol.EncodeItem(rec)))}, true
}

func (s *Simulator) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Simulator) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}
