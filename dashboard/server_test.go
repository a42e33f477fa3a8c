package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dialwatch/dialwatch/registry"
	"github.com/dialwatch/dialwatch/telephony"
	"github.com/dialwatch/dialwatch/types"
)

type stubDriver struct {
	transferErr error
	teardownErr error
}

func (d *stubDriver) PlaceCall(ctx context.Context, phoneNumber string, trunk telephony.TrunkConfig) (string, error) {
	return "session", nil
}

func (d *stubDriver) TransferParticipant(ctx context.Context, session, participantID, destination string) error {
	return d.transferErr
}

func (d *stubDriver) TeardownSession(ctx context.Context, session string) error {
	return d.teardownErr
}

type stubDispatcher struct {
	err error
}

func (d *stubDispatcher) DispatchAgentJob(ctx context.Context, agentName, sessionName string, metadata map[string]string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return "dispatch-1", nil
}

func newTestServer(t *testing.T) (*gin.Engine, *registry.Registry, *stubDriver, *stubDispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	driver := &stubDriver{}
	dispatcher := &stubDispatcher{}
	reg := registry.New(zap.NewNop(), driver, dispatcher, "outbound-caller")

	engine := gin.New()
	NewServer(zap.NewNop(), reg).Register(engine)
	return engine, reg, driver, dispatcher
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return w, payload
}

func TestHealthRoute(t *testing.T) {
	engine, _, _, _ := newTestServer(t)

	w, payload := doJSON(t, engine, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", payload["status"])
}

func TestStartCallEndpoint(t *testing.T) {
	engine, _, _, _ := newTestServer(t)

	w, payload := doJSON(t, engine, http.MethodPost, "/api/calls/start",
		`{"phone_number":"+15550001","customer_name":"Ana","transfer_to":"+15559999"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "dispatch-1", payload["dispatch_id"])
	callID, _ := payload["call_id"].(string)
	require.NotEmpty(t, callID)

	w, payload = doJSON(t, engine, http.MethodGet, "/api/calls/"+callID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dialing", payload["status"])
	assert.Equal(t, "+15550001", payload["phone_number"])

	w, payload = doJSON(t, engine, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), payload["active_calls"])
}

func TestStartCallValidation(t *testing.T) {
	engine, _, _, _ := newTestServer(t)

	w, _ := doJSON(t, engine, http.MethodPost, "/api/calls/start", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, payload := doJSON(t, engine, http.MethodPost, "/api/calls/start", `{"phone_number":"555-0001"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, payload["error"], "E.164")
}

func TestStartCallDispatchFailureIsBadGateway(t *testing.T) {
	engine, _, _, dispatcher := newTestServer(t)
	dispatcher.err = errors.New("dispatch service down")

	w, payload := doJSON(t, engine, http.MethodPost, "/api/calls/start", `{"phone_number":"+15550001"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, payload["error"], "dispatch service down")
}

func TestCommandsOnUnknownCall(t *testing.T) {
	engine, _, _, _ := newTestServer(t)

	w, _ := doJSON(t, engine, http.MethodGet, "/api/calls/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, engine, http.MethodPost, "/api/calls/nope/transfer", `{"transfer_to":"+15559999"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, engine, http.MethodPost, "/api/calls/nope/end", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransferAndEndFlow(t *testing.T) {
	engine, _, driver, _ := newTestServer(t)

	_, payload := doJSON(t, engine, http.MethodPost, "/api/calls/start", `{"phone_number":"+15550001"}`)
	callID := payload["call_id"].(string)

	w, _ := doJSON(t, engine, http.MethodPost, "/api/calls/"+callID+"/transfer", `{"transfer_to":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, engine, http.MethodPost, "/api/calls/"+callID+"/transfer", `{"transfer_to":"+15559999"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	driver.teardownErr = errors.New("room gone wrong")
	w, _ = doJSON(t, engine, http.MethodPost, "/api/calls/"+callID+"/end", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	driver.teardownErr = nil
	w, _ = doJSON(t, engine, http.MethodPost, "/api/calls/"+callID+"/end", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Ended call still readable, now from history.
	w, payload = doJSON(t, engine, http.MethodGet, "/api/calls/"+callID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ended", payload["status"])
}

func TestCallsListingWindow(t *testing.T) {
	engine, reg, _, _ := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		call, _, err := reg.StartCall(ctx, "+15550001", "Ana", "")
		require.NoError(t, err)
		require.NoError(t, reg.EndCall(ctx, call.CallID))
	}

	w, payload := doJSON(t, engine, http.MethodGet, "/api/calls?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), payload["total"])
	assert.Len(t, payload["calls"], 2)
}

func readEvent(t *testing.T, conn *websocket.Conn) types.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev types.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketSnapshotAndEvents(t *testing.T) {
	engine, reg, _, _ := newTestServer(t)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	snapshot := readEvent(t, conn)
	assert.Equal(t, types.EventInitialState, snapshot.Type)
	assert.Empty(t, snapshot.ActiveCalls)
	require.NotNil(t, snapshot.Stats)

	call, _, err := reg.StartCall(context.Background(), "+15550001", "Ana", "")
	require.NoError(t, err)

	started := readEvent(t, conn)
	assert.Equal(t, types.EventCallStarted, started.Type)
	assert.Equal(t, call.CallID, started.CallID)
	require.NotNil(t, started.Data)
	assert.Equal(t, types.StatusDialing, started.Data.Status)

	require.NoError(t, reg.AppendTranscript(call.CallID, types.TranscriptEntry{
		Speaker: types.SpeakerCustomer,
		Text:    "hello",
	}))
	transcript := readEvent(t, conn)
	assert.Equal(t, types.EventTranscript, transcript.Type)
	require.NotNil(t, transcript.Message)
	assert.Equal(t, "hello", transcript.Message.Text)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	pong := readEvent(t, conn)
	assert.Equal(t, types.EventPong, pong.Type)
}

func TestWebSocketDisconnectRemovesObserver(t *testing.T) {
	engine, reg, _, _ := newTestServer(t)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	readEvent(t, conn) // snapshot
	require.Equal(t, 1, reg.ObserverCount())

	conn.Close()
	require.Eventually(t, func() bool {
		return reg.ObserverCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
