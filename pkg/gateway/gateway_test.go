package gateway

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/bridge"
	"github.com/DeBrosOfficial/subbridge/pkg/broker"
)

type testEnv struct {
	server  *httptest.Server
	network *broker.MemoryNetwork
	gw      *Gateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	network := broker.NewMemoryNetwork(64)
	rt := bridge.NewRuntime(bridge.WithDialer(broker.NewTransportDialer(zap.NewNop(), network)))
	gw := New(nil, Config{MaxPollTimeout: 2 * time.Second}, rt)
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		server.Close()
		rt.Close()
		network.Shutdown()
	})
	return &testEnv{server: server, network: network, gw: gw}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (e *testEnv) createClient(t *testing.T) string {
	t.Helper()
	resp, out := e.do(t, http.MethodPost, "/v1/clients", map[string]any{
		"nodes":          []string{"http://localhost:14265"},
		"broker_options": map[string]any{"transport": "memory"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	return out["handle"].(string)
}

func (e *testEnv) createSubscriber(t *testing.T, handle string, topics ...string) string {
	t.Helper()
	resp, out := e.do(t, http.MethodPost, "/v1/subscribers", map[string]any{
		"handle": handle,
		"topics": topics,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	return out["id"].(string)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, out := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
}

func TestStatusCountsClients(t *testing.T) {
	env := newTestEnv(t)
	env.createClient(t)

	resp, out := env.do(t, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b := out["bridge"].(map[string]any)
	assert.EqualValues(t, 1, b["clients"])
	assert.Contains(t, out, "host")
}

func TestCreateClientValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, out := env.do(t, http.MethodPost, "/v1/clients", map[string]any{"nodes": []string{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", out["code"])

	resp, out = env.do(t, http.MethodPost, "/v1/clients", map[string]any{
		"nodes": []string{"http://ok.example", "::bad"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	details := out["details"].(map[string]any)
	assert.Equal(t, "nodes[1]", details["field"])

	resp, _ = env.do(t, http.MethodPost, "/v1/clients", map[string]any{
		"nodes":          []string{"http://ok.example"},
		"broker_options": map[string]any{"bogus": true},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClientLifecycle(t *testing.T) {
	env := newTestEnv(t)
	handle := env.createClient(t)

	resp, out := env.do(t, http.MethodGet, "/v1/clients/"+handle, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"http://localhost:14265"}, out["nodes"])
	assert.EqualValues(t, 3, out["quorum_size"])

	resp, _ = env.do(t, http.MethodDelete, "/v1/clients/"+handle, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, out = env.do(t, http.MethodGet, "/v1/clients/"+handle, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", out["code"])
}

func TestSubscribeAndPoll(t *testing.T) {
	env := newTestEnv(t)
	handle := env.createClient(t)
	id := env.createSubscriber(t, handle, "milestones/latest")

	resp, out := env.do(t, http.MethodPost, "/v1/subscribers/"+id+"/subscribe", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, "subscribed", out["state"])

	env.network.Publish("milestones/latest", "m1")

	resp, out = env.do(t, http.MethodGet, "/v1/subscribers/"+id+"/poll?timeout=2s", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	event := out["event"].(map[string]any)
	assert.Equal(t, "milestones/latest", event["topic"])
	assert.Equal(t, "m1", event["payload"])
}

func TestPollTimesOut(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSubscriber(t, env.createClient(t), "x")

	resp, out := env.do(t, http.MethodGet, "/v1/subscribers/"+id+"/poll?timeout=50ms", nil)
	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)
	assert.Equal(t, "TIMEOUT", out["code"])

	resp, _ = env.do(t, http.MethodGet, "/v1/subscribers/"+id+"/poll?timeout=soon", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddTopicsRejectsMalformed(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSubscriber(t, env.createClient(t), "x")

	resp, _ := env.do(t, http.MethodPost, "/v1/subscribers/"+id+"/topics", map[string]any{
		"topics": []string{"y", "bad topic"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out := env.do(t, http.MethodGet, "/v1/subscribers/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"x"}, out["topics"])
}

func TestSubscribeRejectedByBroker(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSubscriber(t, env.createClient(t), "messages/#")

	resp, out := env.do(t, http.MethodPost, "/v1/subscribers/"+id+"/subscribe", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "BROKER_ERROR", out["code"])
}

func TestCreateSubscriberUnknownHandle(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/v1/subscribers", map[string]any{"handle": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteSubscriberEndsStream(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSubscriber(t, env.createClient(t), "x")

	resp, _ := env.do(t, http.MethodPost, "/v1/subscribers/"+id+"/subscribe", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/v1/subscribers/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/v1/subscribers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocketStream(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSubscriber(t, env.createClient(t), "receipts")
	resp, _ := env.do(t, http.MethodPost, "/v1/subscribers/"+id+"/subscribe", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/v1/subscribers/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	env.network.Publish("receipts", "r1")
	env.network.Publish("receipts", "r2")

	for _, want := range []string{"r1", "r2"} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		ev, err := broker.DecodeEvent(string(data))
		require.NoError(t, err)
		assert.Equal(t, want, ev.Payload)
	}
}
