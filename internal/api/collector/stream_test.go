package collector

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/tracex/internal/shared/types"
)

func dialStream(t *testing.T, f *fixture, query string, header http.Header) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(f.router)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/traces/stream" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	var welcome StreamMessage
	readMessage(t, conn, &welcome)
	require.Equal(t, "system", welcome.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, msg *StreamMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(msg))
}

func traceFor(id, facilitatorID string) *types.Trace {
	trace := plainTrace(id, "verify")
	trace.Metadata.Set(MetadataFacilitator, types.String(facilitatorID))
	return trace
}

func TestStreamPushesAcceptedRecords(t *testing.T) {
	f := newFixture(t, Auth{})
	conn := dialStream(t, f, "?facilitatorId=fac_1", nil)

	require.Equal(t, http.StatusOK, f.post(t, "/api/traces", traceFor("other", "fac_2"), nil).Code)
	require.Equal(t, http.StatusOK, f.post(t, "/api/traces", traceFor("mine", "fac_1"), nil).Code)

	var msg StreamMessage
	readMessage(t, conn, &msg)
	assert.Equal(t, "trace", msg.Type)
	require.NotNil(t, msg.Record)
	assert.Equal(t, "mine", msg.Record.TraceID)
	assert.Equal(t, KindPlain, msg.Record.Kind)
	assert.Equal(t, fixedNow.UnixMilli(), msg.Timestamp)
}

func TestStreamPingPong(t *testing.T) {
	f := newFixture(t, Auth{})
	conn := dialStream(t, f, "", nil)

	require.NoError(t, conn.WriteJSON(StreamMessage{Type: "ping"}))
	var msg StreamMessage
	readMessage(t, conn, &msg)
	assert.Equal(t, "pong", msg.Type)

	require.NoError(t, conn.WriteJSON(StreamMessage{Type: "subscribe"}))
	readMessage(t, conn, &msg)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Message, "subscribe")
}

func TestStreamRequiresBearerKey(t *testing.T) {
	f := newFixture(t, Auth{APIKey: "secret"})
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/traces/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dialStream(t, f, "", http.Header{"Authorization": {"Bearer secret"}})
	assert.NotNil(t, conn)
}

func TestFeedDropsForSlowSubscribers(t *testing.T) {
	fd := newFeed()
	sub := fd.subscribe("")
	defer fd.unsubscribe(sub)

	records := make([]Record, subscriberBuffer+3)
	assert.Equal(t, 3, fd.publish(records))
	assert.Len(t, sub.records, subscriberBuffer)

	fd.unsubscribe(sub)
	assert.Zero(t, fd.publish(records))
}
