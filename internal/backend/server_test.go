package backend

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eachlabs/steer/internal/channel"
	"github.com/eachlabs/steer/internal/protocol"
	"github.com/eachlabs/steer/internal/session"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	router, err := NewRouter(DefaultRules())
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(router, nil).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

func TestServer_Index(t *testing.T) {
	base := newTestServer(t)

	resp, err := http.Get(base + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Hello, World!", body["message"])

	resp, err = http.Get(base + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RepliesToStructuredAndText(t *testing.T) {
	base := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"location":"/","message":"go to tasks"}`)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"navigate","to":"tasks"}`, string(data))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("blue")))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	fb, err := protocol.Parse(data)
	require.NoError(t, err)
	msg, _ := fb.Text()
	assert.Equal(t, "Switching to blue.", msg)
	assert.Equal(t, []protocol.Action{protocol.ChangeColor{Color: "blue"}}, fb.Actions)
}

func TestServer_RejectsForeignOrigin(t *testing.T) {
	base := newTestServer(t)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(base), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_EndToEndThroughScope(t *testing.T) {
	base := newTestServer(t)

	s := session.New(channel.NewWebSocket(), session.Options{Endpoint: wsURL(base)})
	require.NoError(t, s.Mount(context.Background()))
	defer s.Unmount()

	require.NoError(t, s.Say("make it green"))
	assert.Eventually(t, func() bool {
		return s.Store().Snapshot().Color == "green"
	}, 2*time.Second, 10*time.Millisecond)

	last, ok := s.Store().Snapshot().LastMessage()
	require.True(t, ok)
	assert.Equal(t, "Switching to green.", last.Text)

	require.NoError(t, s.Say("add a task water the plants"))
	require.NoError(t, s.Say("take me to the tasks"))
	assert.Eventually(t, func() bool {
		return s.Store().Snapshot().CurrentRoute == "/tasks"
	}, 2*time.Second, 10*time.Millisecond)

	tasks := s.Store().Snapshot().Tasks
	require.Len(t, tasks, 1)
	assert.Equal(t, "water the plants", tasks[0].Title)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	router, err := NewRouter(nil)
	require.NoError(t, err)
	srv := NewServer(router, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 10*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	// A full exchange guarantees the server has registered the connection.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}
