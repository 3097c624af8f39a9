package gatewaysim

import (
	"bufio"
	"context"
	"encoding/hex"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/inspectctl/internal/protocol"
	"github.com/danmuck/inspectctl/internal/protocol/session"
	"github.com/danmuck/inspectctl/internal/testutil/testlog"
)

func dialSim(t *testing.T, cfg Config) (*Simulator, net.Conn, *bufio.Reader) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	sim := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve exit: %v", err)
		}
	})
	return sim, conn, bufio.NewReader(conn)
}

func TestLoginAckStatus(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		login session.Login
		want  string
		code  uint32
	}{
		{session.Login{Account: "bot", Password: "pw", ClientID: "c"}, session.AckStatusAccepted, 0},
		{session.Login{Account: "bot", Password: "nope", ClientID: "c"}, session.AckStatusRejected, codeBadPassword},
		{session.Login{Account: "ghost", Password: "pw", ClientID: "c"}, session.AckStatusRejected, codeUnknownLogin},
	}
	for _, tc := range cases {
		_, conn, reader := dialSim(t, Config{Accounts: map[string]string{"bot": "pw"}})
		if err := session.WriteLogin(conn, tc.login); err != nil {
			t.Fatalf("write login: %v", err)
		}
		ack, err := session.ReadLoginAck(reader)
		if err != nil {
			t.Fatalf("read ack: %v", err)
		}
		if ack.Status != tc.want || ack.Code != tc.code {
			t.Fatalf("login %+v: got %+v", tc.login, ack)
		}
	}
}

func TestAnswersFromFixtures(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "fixtures.json")
	body := `{"100": {"defindex": 7, "paintindex": 44, "paintseed": 1, "paintwear": 0.5}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}

	sim, conn, reader := dialSim(t, Config{})
	n, err := sim.LoadFixtures(path)
	if err != nil || n != 1 {
		t.Fatalf("load fixtures n=%d err=%v", n, err)
	}
	if err := session.WriteLogin(conn, session.Login{Account: "any", ClientID: "c"}); err != nil {
		t.Fatalf("write login: %v", err)
	}
	if _, err := session.ReadLoginAck(reader); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if err := session.WriteInspectRequest(conn, session.InspectRequest{Owner: "1", AssetID: "100", ClassID: "2"}); err != nil {
		t.Fatalf("write request: %v", err)
	}
	env, err := session.ReadEnvelope(reader)
	if err != nil {
		t.Fatalf("read answer: %v", err)
	}
	raw, err := hex.DecodeString(env.Answer.Item)
	if err != nil {
		t.Fatalf("answer hex: %v", err)
	}
	rec, err := protocol.DecodeItem(raw)
	if err != nil {
		t.Fatalf("answer decode: %v", err)
	}
	if rec.DefIndex != 7 || rec.PaintIndex != 44 || rec.Wear != 0.5 {
		t.Fatalf("unexpected answer: %+v", rec)
	}
	if reqs := sim.Requests(); len(reqs) != 1 || reqs[0].AssetID != "100" {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
}

func TestUnknownAssetIsNotAnswered(t *testing.T) {
	testlog.Start(t)
	_, conn, reader := dialSim(t, Config{})
	if err := session.WriteLogin(conn, session.Login{Account: "any", ClientID: "c"}); err != nil {
		t.Fatalf("write login: %v", err)
	}
	if _, err := session.ReadLoginAck(reader); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if err := session.WriteInspectRequest(conn, session.InspectRequest{Market: "1", AssetID: "5", ClassID: "2"}); err != nil {
		t.Fatalf("write request: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, err := session.ReadEnvelope(reader); err == nil {
		t.Fatalf("expected no answer for unknown asset")
	}
}
