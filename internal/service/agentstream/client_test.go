package agentstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ZigmaPulse/internal/domain/models"
)

func agentServer(t *testing.T) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub subscribeFrame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`))
		_ = conn.WriteJSON(logFrame{Type: "log", Agent: sub.Agent, Seq: 7, Line: "--- Agent Zigma Cycle: T1 ---", TS: 1700000000000})
		_ = conn.WriteJSON(logFrame{Type: "log", Agent: sub.Agent, Seq: 8, Lines: []string{"a", "b"}})
		time.Sleep(200 * time.Millisecond)
	}))
}

func TestClientReadsLogFrames(t *testing.T) {
	srv := agentServer(t)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(url, "secret", []string{"zigma"}, 10*time.Millisecond, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())

	lines, _ := c.Read(ctx)
	var got []*models.LogLine
	for l := range lines {
		got = append(got, l)
		if len(got) == 3 {
			break
		}
	}
	require.Len(t, got, 3)
	assert.Equal(t, "zigma", got[0].Agent)
	assert.Equal(t, uint64(7), got[0].Seq)
	assert.Equal(t, int64(1700000000), got[0].ReceivedAt.Unix())
	assert.Equal(t, "a", got[1].Text)
	assert.Equal(t, uint64(9), got[2].Seq)

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}

func TestSubscribeNotConnected(t *testing.T) {
	c := New("ws://127.0.0.1:1", "", []string{"zigma"}, 0, 0)
	assert.Error(t, c.Subscribe(context.Background()))
}
