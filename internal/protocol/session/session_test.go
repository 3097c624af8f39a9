package session

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/inspectctl/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
	cfg.Jitter = true
	if got := NextBackoffDelay(cfg, 2, nil); got != 250*time.Millisecond {
		t.Fatalf("jitter without rng got=%v", got)
	}
}

func TestConfigWithDefaultsFillsZeroes(t *testing.T) {
	testlog.Start(t)
	cfg := Config{ConnectTimeout: time.Second}.WithDefaults()
	def := DefaultConfig()
	if cfg.ConnectTimeout != time.Second {
		t.Fatalf("explicit value overwritten: %v", cfg.ConnectTimeout)
	}
	if cfg.HandshakeTimeout != def.HandshakeTimeout || cfg.Backoff != def.Backoff {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoginHandshakeRoundTrip(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteLogin(&buf, Login{Account: "bot1", Password: "pw", ClientID: "inspectctl"}); err != nil {
		t.Fatalf("write login: %v", err)
	}
	if err := WriteLoginAck(&buf, LoginAck{Status: AckStatusAccepted, Message: "ok", TimestampMS: 1}); err != nil {
		t.Fatalf("write ack: %v", err)
	}
	r := bufio.NewReader(&buf)
	env, err := ReadEnvelope(r)
	if err != nil {
		t.Fatalf("read login: %v", err)
	}
	if env.Type != TypeLogin || env.Login.Account != "bot1" {
		t.Fatalf("unexpected login envelope: %+v", env)
	}
	ack, err := ReadLoginAck(r)
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack.Status != AckStatusAccepted {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestInspectRequestValidation(t *testing.T) {
	testlog.Start(t)
	good := InspectRequest{Owner: "765", AssetID: "1", ClassID: "2"}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	for _, bad := range []InspectRequest{
		{AssetID: "1", ClassID: "2"},
		{Owner: "1", Market: "2", AssetID: "1", ClassID: "2"},
		{Market: "x", AssetID: "1", ClassID: "2"},
		{Owner: "1", ClassID: "2"},
	} {
		if err := WriteInspectRequest(&bytes.Buffer{}, bad); !errors.Is(err, ErrInvalidInspectRequest) {
			t.Fatalf("request %+v: expected ErrInvalidInspectRequest, got %v", bad, err)
		}
	}
}

func TestReadEnvelopeRejectsUnknownType(t *testing.T) {
	testlog.Start(t)
	_, err := ReadEnvelope(bufio.NewReader(strings.NewReader(`{"type":"bogus"}` + "\n")))
	if !errors.Is(err, ErrUnexpectedEnvelope) {
		t.Fatalf("expected ErrUnexpectedEnvelope, got %v", err)
	}
}

func TestReadLoginAckRejectsOtherEnvelope(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteInspectAnswer(&buf, InspectAnswer{Item: "1807"}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, err := ReadLoginAck(bufio.NewReader(&buf))
	if !errors.Is(err, ErrUnexpectedEnvelope) {
		t.Fatalf("expected ErrUnexpectedEnvelope, got %v", err)
	}
}

// endless never sends a newline.
type endless struct {
	read int
}

func (e *endless) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'a'
	}
	e.read += len(p)
	return len(p), nil
}

func TestReadEnvelopeStopsAtSizeLimit(t *testing.T) {
	testlog.Start(t)
	src := &endless{}
	_, err := ReadEnvelope(bufio.NewReader(src))
	if !errors.Is(err, ErrEnvelopeTooLarge) {
		t.Fatalf("expected ErrEnvelopeTooLarge, got %v", err)
	}
	if src.read > maxEnvelopeBytes+8192 {
		t.Fatalf("read %d bytes past a %d byte limit", src.read, maxEnvelopeBytes)
	}
}

func TestReadEnvelopeSpansBufferFills(t *testing.T) {
	testlog.Start(t)
	want := strings.Repeat("AB", 6000)
	var buf bytes.Buffer
	if err := WriteInspectAnswer(&buf, InspectAnswer{Item: want}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	if err := WriteInspectAnswer(&buf, InspectAnswer{Item: "1807"}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	r := bufio.NewReaderSize(&buf, 4096)
	env, err := ReadEnvelope(r)
	if err != nil {
		t.Fatalf("read long envelope: %v", err)
	}
	if env.Answer == nil || env.Answer.Item != want {
		t.Fatalf("long envelope mangled")
	}
	env, err = ReadEnvelope(r)
	if err != nil || env.Answer.Item != "1807" {
		t.Fatalf("second envelope: %+v err=%v", env, err)
	}
}

func TestValidateClientTransport(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "plain development", cfg: Config{}},
		{name: "unknown mode", cfg: Config{SecurityMode: "staging"}, want: ErrInvalidSecurityMode},
		{name: "mode is case-insensitive", cfg: Config{SecurityMode: " Development "}},
		{name: "tls needs ca", cfg: Config{TLS: TLSConfig{Enabled: true}}, want: ErrTLSCAFileRequired},
		{name: "tls insecure skips ca", cfg: Config{TLS: TLSConfig{Enabled: true, InsecureSkipVerify: true}}},
		{name: "mutual needs tls", cfg: Config{TLS: TLSConfig{Mutual: true}}, want: ErrTLSRequired},
		{name: "mutual needs cert", cfg: Config{TLS: TLSConfig{Enabled: true, Mutual: true, CAFile: "ca"}}, want: ErrTLSCertFileRequired},
		{name: "mutual needs key", cfg: Config{TLS: TLSConfig{Enabled: true, Mutual: true, CAFile: "ca", CertFile: "c"}}, want: ErrTLSKeyFileRequired},
		{name: "production needs tls", cfg: Config{SecurityMode: SecurityModeProduction}, want: ErrTLSRequired},
		{name: "production needs mutual", cfg: Config{SecurityMode: SecurityModeProduction, TLS: TLSConfig{Enabled: true, CAFile: "ca"}}, want: ErrMTLSRequired},
		{
			name: "production forbids insecure",
			cfg:  Config{SecurityMode: SecurityModeProduction, TLS: TLSConfig{Enabled: true, Mutual: true, InsecureSkipVerify: true}},
			want: ErrTLSInsecureSkipNotAllowed,
		},
		{
			name: "production mutual",
			cfg:  Config{SecurityMode: SecurityModeProduction, TLS: TLSConfig{Enabled: true, Mutual: true, CAFile: "ca", CertFile: "c", KeyFile: "k"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.ValidateClientTransport()
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateServerTransport(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "plain", cfg: Config{}},
		{name: "tls needs cert", cfg: Config{TLS: TLSConfig{Enabled: true}}, want: ErrTLSCertFileRequired},
		{name: "tls needs key", cfg: Config{TLS: TLSConfig{Enabled: true, CertFile: "c"}}, want: ErrTLSKeyFileRequired},
		{name: "tls", cfg: Config{TLS: TLSConfig{Enabled: true, CertFile: "c", KeyFile: "k"}}},
		{name: "mutual needs ca", cfg: Config{TLS: TLSConfig{Enabled: true, Mutual: true, CertFile: "c", KeyFile: "k"}}, want: ErrTLSCAFileRequired},
		{name: "production needs mutual", cfg: Config{SecurityMode: SecurityModeProduction, TLS: TLSConfig{Enabled: true, CertFile: "c", KeyFile: "k"}}, want: ErrMTLSRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.ValidateServerTransport()
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestClientTLSConfigServerName(t *testing.T) {
	testlog.Start(t)
	cfg := Config{TLS: TLSConfig{Enabled: true, InsecureSkipVerify: true}}
	tlsCfg, err := cfg.ClientTLSConfig("gc.internal:27050")
	if err != nil {
		t.Fatalf("client tls config: %v", err)
	}
	if tlsCfg.ServerName != "gc.internal" {
		t.Fatalf("expected host fallback, got %q", tlsCfg.ServerName)
	}
	if _, err := cfg.ClientTLSConfig("no-port"); err == nil {
		t.Fatalf("expected address parse error without server name")
	}
	cfg.TLS.ServerName = "override.internal"
	if tlsCfg, _ = cfg.ClientTLSConfig("gc.internal:27050"); tlsCfg.ServerName != "override.internal" {
		t.Fatalf("explicit server name ignored: %q", tlsCfg.ServerName)
	}
	cfg.TLS.CAFile = "/nonexistent/ca.crt"
	if _, err := cfg.ClientTLSConfig("gc.internal:27050"); err == nil {
		t.Fatalf("expected missing ca file error")
	}
}
