package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/danmuck/inspectctl/internal/inspect"
	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/link"
	"github.com/danmuck/inspectctl/internal/resolver"
	"github.com/danmuck/inspectctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	maskedHex    = "001807202C38808080F8034001430F689E"
	unmaskedLink = "steam://rungame/730/76561202255233023/+csgo_econ_action_preview%20S76561198084749846A38150000123D9"
)

type stubInspector struct {
	rec item.Record
	err error
}

func (s stubInspector) Inspect(context.Context, link.Info) (item.Record, error) {
	return s.rec, s.err
}

type stubQueue struct {
	depth int
	state inspect.SessionState
}

func (q stubQueue) QueueDepth() int             { return q.depth }
func (q stubQueue) State() inspect.SessionState { return q.state }

func newTestServer(t *testing.T, insp resolver.Inspector, q QueueStatus) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	res := resolver.New(resolver.DefaultConfig(), insp, nil)
	return New(DefaultConfig(), res, q).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	}
	return rr, out
}

func TestHealthAndRequestID(t *testing.T) {
	testlog.Start(t)
	h := newTestServer(t, nil, nil)
	rr, body := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestInspectMaskedLink(t *testing.T) {
	testlog.Start(t)
	h := newTestServer(t, nil, nil)
	rr, body := do(t, h, http.MethodGet, "/v1/inspect?link="+url.QueryEscape(link.Prefix+maskedHex), "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, resolver.SourceLocal, body["source"])
	rec := body["item"].(map[string]any)
	assert.EqualValues(t, 7, rec["defindex"])
	assert.EqualValues(t, 44, rec["paintindex"])
}

func TestInspectPostBody(t *testing.T) {
	testlog.Start(t)
	h := newTestServer(t, nil, nil)
	rr, body := do(t, h, http.MethodPost, "/v1/inspect", `{"link":"`+maskedHex+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, link.Prefix+maskedHex, body["masked"])
}

func TestInspectErrorMapping(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name   string
		insp   resolver.Inspector
		link   string
		status int
		code   string
	}{
		{name: "missing", link: "", status: http.StatusBadRequest, code: "bad_request"},
		{name: "garbage", link: "hello world", status: http.StatusBadRequest, code: "invalid_link"},
		{name: "short frame", link: "00AB", status: http.StatusBadRequest, code: "invalid_framing"},
		{name: "no session", link: unmaskedLink, status: http.StatusServiceUnavailable, code: "session_unavailable"},
		{name: "queue full", insp: stubInspector{err: inspect.ErrQueueFull}, link: unmaskedLink, status: http.StatusTooManyRequests, code: "queue_full"},
		{name: "not ready", insp: stubInspector{err: inspect.ErrSessionNotReady}, link: unmaskedLink, status: http.StatusServiceUnavailable, code: "session_unavailable"},
		{name: "timed out", insp: stubInspector{err: inspect.ErrRequestTimedOut}, link: unmaskedLink, status: http.StatusGatewayTimeout, code: "timeout"},
		{name: "expired", insp: stubInspector{err: inspect.ErrRequestExpired}, link: unmaskedLink, status: http.StatusGatewayTimeout, code: "timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(t, tc.insp, nil)
			rr, body := do(t, h, http.MethodGet, "/v1/inspect?link="+url.QueryEscape(tc.link), "")
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestInspectUnmaskedThroughQueue(t *testing.T) {
	testlog.Start(t)
	insp := stubInspector{rec: item.Record{DefIndex: 500, PaintIndex: 38, ItemID: item.Some(uint64(38150000123))}}
	h := newTestServer(t, insp, nil)
	rr, body := do(t, h, http.MethodGet, "/v1/inspect?link="+url.QueryEscape(unmaskedLink), "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, resolver.SourceQueue, body["source"])
	info := body["link"].(map[string]any)
	assert.Equal(t, "unmasked", info["kind"])
}

func TestEncodeRecord(t *testing.T) {
	testlog.Start(t)
	h := newTestServer(t, nil, nil)
	rr, body := do(t, h, http.MethodPost, "/v1/encode", `{"defindex":7,"paintindex":44,"paintseed":1,"paintwear":0.5}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, maskedHex, body["hex"])
	assert.Equal(t, link.Prefix+maskedHex, body["link"])

	rr, body = do(t, h, http.MethodPost, "/v1/encode", `{"defindex":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_request", body["code"])
}

func TestQueueStatus(t *testing.T) {
	testlog.Start(t)
	rr, body := do(t, newTestServer(t, nil, nil), http.MethodGet, "/v1/queue", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, body["enabled"])

	rr, body = do(t, newTestServer(t, nil, stubQueue{depth: 3, state: inspect.Ready}), http.MethodGet, "/v1/queue", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["enabled"])
	assert.EqualValues(t, 3, body["depth"])
	assert.Equal(t, "ready", body["state"])
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	h := newTestServer(t, nil, nil)
	do(t, h, http.MethodGet, "/health", "")
	rr, _ := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "inspectctl_http_requests_total")
}

func TestCorsPreflight(t *testing.T) {
	testlog.Start(t)
	h := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/encode", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
