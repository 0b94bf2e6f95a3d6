package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	agencyhttp "github.com/ravituringworks/agency/pkg/adapters/http"
	"github.com/ravituringworks/agency/pkg/adapters/memory"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/orchestrator"
	"github.com/ravituringworks/agency/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, msgs []domain.Message) (string, error) {
	return "echo: " + msgs[len(msgs)-1].Content, nil
}

func newHandler(t *testing.T, opts ...agencyhttp.Option) (http.Handler, *memory.LedgerStore, *agencyhttp.StreamManager) {
	t.Helper()
	ledgers := memory.NewLedgerStore()
	streams := agencyhttp.NewStreamManager(nil)
	r := runner.New(orchestrator.New(orchestrator.DefaultSteps()), runner.WithGenerator(echoGenerator{}))
	opts = append([]agencyhttp.Option{agencyhttp.WithLedgers(ledgers), agencyhttp.WithStreams(streams)}, opts...)
	return agencyhttp.NewHandler(r, opts...), ledgers, streams
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndInfo(t *testing.T) {
	h, _, _ := newHandler(t, agencyhttp.WithVersion("1.2.3\n"))

	w := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", "")
	assert.JSONEq(t, `{"app":"agency-http","version":"1.2.3"}`, w.Body.String())
}

func TestChatAndSessions(t *testing.T) {
	h, _, _ := newHandler(t)

	w := do(t, h, http.MethodPost, "/v1/chat", `{"session_id":"s1","message":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reply runner.Reply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, "echo: hello", reply.Response)
	assert.Equal(t, "s1", reply.SessionID)
	assert.True(t, reply.Generated)

	w = do(t, h, http.MethodGet, "/v1/sessions", "")
	assert.JSONEq(t, `["s1"]`, w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/sessions/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history []domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 3)

	w = do(t, h, http.MethodDelete, "/v1/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/v1/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat_BadRequests(t *testing.T) {
	h, _, _ := newHandler(t)

	w := do(t, h, http.MethodPost, "/v1/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/v1/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid input")
}

func TestLedgers(t *testing.T) {
	h, ledgers, _ := newHandler(t)
	ledger := domain.NewTransactionLedger("l1", "booking", nil)
	ledger.Steps = []domain.StepRef{{ID: "s1", Name: "reserve"}}
	ledger.StepStates["s1"] = domain.StepState{Phase: domain.PhaseCompensated}
	require.NoError(t, ledgers.Save(context.Background(), ledger))

	w := do(t, h, http.MethodGet, "/v1/ledgers", "")
	assert.JSONEq(t, `["l1"]`, w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/ledgers/l1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.TransactionLedger
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, domain.PhaseCompensated, got.State("s1").Phase)

	w = do(t, h, http.MethodGet, "/v1/ledgers/l1", "", "Accept", "application/yaml")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "booking", doc["name"])

	w = do(t, h, http.MethodGet, "/v1/ledgers/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsMounted(t *testing.T) {
	h, _, _ := newHandler(t, agencyhttp.WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("agency_up 1\n"))
	})))

	w := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, "agency_up 1\n", w.Body.String())
}

func TestEvents_StreamsSessionReplies(t *testing.T) {
	h, _, streams := newHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events?session_id=s1", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return streams.Subscribers("s1") == 1 }, time.Second, 10*time.Millisecond)

	chat, err := srv.Client().Post(srv.URL+"/v1/chat", "application/json", strings.NewReader(`{"session_id":"s1","message":"ping"}`))
	require.NoError(t, err)
	chat.Body.Close()

	reader := bufio.NewReader(resp.Body)
	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var reply runner.Reply
	require.NoError(t, json.Unmarshal([]byte(data), &reply))
	assert.Equal(t, "echo: ping", reply.Response)
}

func TestStreamManager_HooksPublishGlobally(t *testing.T) {
	sm := agencyhttp.NewStreamManager(nil)
	ch, cancel := sm.Subscribe(agencyhttp.GlobalTopic)
	defer cancel()

	sm.Hooks().OnToolCall(context.Background(), &domain.ToolEvent{
		EventBase: domain.NewEventBase(domain.EventToolCall),
		ToolName:  "system_info",
	})

	select {
	case msg := <-ch:
		assert.Contains(t, msg, `"tool_name":"system_info"`)
	case <-time.After(time.Second):
		t.Fatal("no event broadcast")
	}

	cancel()
	cancel()
	assert.Zero(t, sm.Subscribers(agencyhttp.GlobalTopic))
}

func TestStreamManager_CloseEndsSubscriptions(t *testing.T) {
	sm := agencyhttp.NewStreamManager(nil)
	ch, cancel := sm.Subscribe("s1")

	sm.Close()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, sm.Subscribers("s1"))

	// Cancelling after Close must not close the channel twice.
	assert.NotPanics(t, cancel)
}

func TestStreamManager_CancelAfterCloseAndResubscribe(t *testing.T) {
	sm := agencyhttp.NewStreamManager(nil)
	_, cancelOld := sm.Subscribe(agencyhttp.GlobalTopic)

	sm.Close()
	fresh, cancelFresh := sm.Subscribe(agencyhttp.GlobalTopic)

	assert.NotPanics(t, cancelOld)
	assert.Equal(t, 1, sm.Subscribers(agencyhttp.GlobalTopic))

	sm.Broadcast(agencyhttp.GlobalTopic, "still here")
	assert.Equal(t, "still here", <-fresh)

	cancelFresh()
	assert.Zero(t, sm.Subscribers(agencyhttp.GlobalTopic))
}
