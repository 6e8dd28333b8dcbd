package ws

import (
	"encoding/json"
	"sync"

	"github.com/avvvet/blackjack-services/internal/comm"
	"github.com/avvvet/blackjack-services/internal/socketsvc/broker"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Client is an authenticated websocket connection. gorilla connections allow
// one concurrent writer, so every write goes through Send.
type Client struct {
	Id       string
	PlayerId int64
	Name     string

	conn *websocket.Conn
	mu   sync.Mutex
}

func NewClient(id string, playerId int64, name string, conn *websocket.Conn) *Client {
	return &Client{Id: id, PlayerId: playerId, Name: name, conn: conn}
}

func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Publisher interface {
	Publish(topic string, payload []byte) error
}

type Ws struct {
	connMap sync.Map // socketId -> *Client
	roomMap sync.Map // socketId -> tableId

	Broker Publisher
	topic  string
}

// NewWs forwards client events to topic.
func NewWs(topic string) *Ws {
	return &Ws{topic: topic}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.TypeInit, comm.TypeJoin, comm.TypeLeave, comm.TypePlaceBet, comm.TypeAction,
		comm.TypeNewRound, comm.TypeEndGame, comm.TypeCreateTable, comm.TypeListTables, comm.TypeGetBalance:
		s.forward(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

// forward stamps the connection identity onto message and publishes it for
// the game service. A message without a table id refers to the socket's room.
func (s *Ws) forward(socketId string, msg *comm.WSMessage) {
	client, ok := s.GetConnection(socketId)
	if !ok {
		return
	}

	msg.SocketId = socketId
	msg.PlayerId = client.PlayerId
	msg.Name = client.Name
	if msg.TableId == 0 {
		msg.TableId, _ = s.GetRoom(socketId)
	}

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if err := s.Broker.Publish(s.topic, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", s.topic, err)
		return
	}

	log.Debugf("Published %s from player %d to topic %s", msg.Type, client.PlayerId, s.topic)
}

// HandleConnect registers the player with the game service.
func (s *Ws) HandleConnect(socketId string) {
	s.forward(socketId, &comm.WSMessage{Type: comm.TypeInit})
}

// HandleDisconnect leaves the socket's table. The game service refuses the
// leave while the player has a bet in play; the seat then stays taken and the
// turn timer stands the hand.
func (s *Ws) HandleDisconnect(socketId string) {
	if tableId, ok := s.GetRoom(socketId); ok {
		s.forward(socketId, &comm.WSMessage{Type: comm.TypeLeave, TableId: tableId})
	}
	s.roomMap.Delete(socketId)
	s.connMap.Delete(socketId)
}

func (s *Ws) StoreConnection(c *Client) {
	s.connMap.Store(c.Id, c)
}

func (s *Ws) GetConnection(socketId string) (*Client, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*Client), true
}

func (s *Ws) GetRoom(socketId string) (int64, bool) {
	room, ok := s.roomMap.Load(socketId)
	if !ok {
		return 0, false
	}
	return room.(int64), true
}

// Socket, RoomSockets, PlayerSockets, JoinRoom and LeaveRoom let the broker
// route game service messages.

func (s *Ws) Socket(socketId string) (broker.Sender, bool) {
	c, ok := s.GetConnection(socketId)
	if !ok {
		return nil, false
	}
	return c, true
}

func (s *Ws) RoomSockets(tableId int64) []string {
	var sockets []string
	s.roomMap.Range(func(key, value interface{}) bool {
		if value.(int64) == tableId {
			sockets = append(sockets, key.(string))
		}
		return true // continue iterating
	})
	return sockets
}

func (s *Ws) PlayerSockets(playerId int64) []string {
	var sockets []string
	s.connMap.Range(func(key, value interface{}) bool {
		if value.(*Client).PlayerId == playerId {
			sockets = append(sockets, key.(string))
		}
		return true
	})
	return sockets
}

func (s *Ws) JoinRoom(socketId string, tableId int64) {
	if _, ok := s.connMap.Load(socketId); ok {
		s.roomMap.Store(socketId, tableId)
	}
}

func (s *Ws) LeaveRoom(socketId string, tableId int64) {
	if room, ok := s.GetRoom(socketId); ok && room == tableId {
		s.roomMap.Delete(socketId)
	}
}

func (s *Ws) OnlineCount() int {
	n := 0
	s.connMap.Range(func(key, value any) bool {
		n++
		return true
	})
	return n
}
