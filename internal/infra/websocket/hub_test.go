package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaliumosint/api/pkg/domain/scan"
	"github.com/kaliumosint/api/pkg/logger"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	handler := NewHandler(hub, []string{"*"}, logger.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?session=" + session
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitSubscribed(t *testing.T, hub *Hub, channel string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.GetStats().ChannelClients[channel] == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScanSink_DeliversToSession(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv, "abc")
	other := dial(t, srv, "xyz")
	waitSubscribed(t, hub, ScanChannel("abc"), 1)
	waitSubscribed(t, hub, ScanChannel("xyz"), 1)

	sink := NewScanSink(hub, "abc")
	event := scan.ProgressEvent{RunID: "r1", StepIndex: 1, TotalSteps: 8, ProgressPercent: 13, Status: "Initializing scan"}
	require.NoError(t, sink.Push(context.Background(), event))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeEvent, msg.Type)
	assert.Equal(t, "scan:abc", msg.Channel)

	var got scan.ProgressEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, event.StepIndex, got.StepIndex)
	assert.Equal(t, event.Status, got.Status)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "other sessions receive nothing")
}

func TestClient_SubscribeForeignChannelDenied(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv, "abc")
	waitSubscribed(t, hub, ScanChannel("abc"), 1)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeSubscribe, Channel: "scan:someone-else", RequestID: "r1"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "r1", msg.RequestID)

	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "FORBIDDEN", data.Code)
}

func TestClient_Ping(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv, "abc")
	waitSubscribed(t, hub, ScanChannel("abc"), 1)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypePing, RequestID: "p"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypePong, msg.Type)
	assert.Equal(t, "p", msg.RequestID)
}

func TestHandler_RequiresSession(t *testing.T) {
	_, srv, _ := startHub(t)

	for _, q := range []string{"", "?session=", "?session=bad%20id"} {
		resp, err := http.Get(srv.URL + q)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestHub_BroadcastAfterStop(t *testing.T) {
	hub, _, cancel := startHub(t)
	cancel()

	require.Eventually(t, func() bool {
		return NewScanSink(hub, "abc").Push(context.Background(), scan.ProgressEvent{}) != nil
	}, 2*time.Second, 5*time.Millisecond)

	err := NewScanSink(hub, "abc").Push(context.Background(), scan.ProgressEvent{})
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestParseChannel(t *testing.T) {
	typ, id := ParseChannel("scan:abc:def")
	assert.Equal(t, ChannelTypeScan, typ)
	assert.Equal(t, "abc:def", id)

	typ, id = ParseChannel("plain")
	assert.Empty(t, typ)
	assert.Equal(t, "plain", id)
}
