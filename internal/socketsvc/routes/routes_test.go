package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avvvet/blackjack-services/internal/comm"
	"github.com/avvvet/blackjack-services/internal/socketsvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanPublisher chan comm.WSMessage

func (c chanPublisher) Publish(topic string, payload []byte) error {
	var m comm.WSMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	c <- m
	return nil
}

func next(t *testing.T, c chanPublisher) comm.WSMessage {
	t.Helper()
	select {
	case m := <-c:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
		return comm.WSMessage{}
	}
}

func TestWebSocketNeedsToken(t *testing.T) {
	ja := jwtauth.New("HS256", []byte("secret"), nil)
	s := ws.NewWs("socket.service")
	s.Broker = make(chanPublisher, 4)

	r := chi.NewRouter()
	SetRoutes(r, s, ja, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocketForwardsEvents(t *testing.T) {
	ja := jwtauth.New("HS256", []byte("secret"), nil)
	pub := make(chanPublisher, 4)
	s := ws.NewWs("socket.service")
	s.Broker = pub

	r := chi.NewRouter()
	SetRoutes(r, s, ja, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, tok, err := ja.Encode(map[string]interface{}{"player_id": 5, "name": "eve"})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws?jwt=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	hello := next(t, pub)
	assert.Equal(t, comm.TypeInit, hello.Type)
	assert.Equal(t, int64(5), hello.PlayerId)
	assert.Equal(t, "eve", hello.Name)

	require.NoError(t, conn.WriteJSON(comm.WSMessage{Type: comm.TypeJoin, Data: json.RawMessage(`{"tableId":2}`), RequestId: "r9"}))
	join := next(t, pub)
	assert.Equal(t, comm.TypeJoin, join.Type)
	assert.Equal(t, "r9", join.RequestId)
	assert.Equal(t, hello.SocketId, join.SocketId)

	s.JoinRoom(join.SocketId, 2)
	require.NoError(t, conn.Close())

	leave := next(t, pub)
	assert.Equal(t, comm.TypeLeave, leave.Type)
	assert.Equal(t, int64(2), leave.TableId)
}
