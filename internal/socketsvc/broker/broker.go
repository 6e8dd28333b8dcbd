package broker

import (
	"encoding/json"
	"strings"

	"github.com/avvvet/blackjack-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Sender is one websocket connection.
type Sender interface {
	Send(v interface{}) error
}

// Router knows which connections are open and which table room each one is in.
type Router interface {
	Socket(socketId string) (Sender, bool)
	RoomSockets(tableId int64) []string
	PlayerSockets(playerId int64) []string
	JoinRoom(socketId string, tableId int64)
	LeaveRoom(socketId string, tableId int64)
}

type Broker struct {
	Conn   *nats.Conn
	router Router
}

func NewBroker(conn *nats.Conn, router Router) *Broker {
	return &Broker{
		Conn:   conn,
		router: router,
	}
}

// consume message from game service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message to game service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages receive message from game service
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}
	b.Deliver(message)
}

// Deliver routes a game service message. Acks go to the requesting socket and
// move it between rooms, unicast events go to every socket of the player and
// the rest go to the table room.
func (b *Broker) Deliver(m *comm.WSMessage) {
	switch {
	case m.SocketId != "":
		b.trackRoom(m)
		b.sendMessage(m.SocketId, m)
	case m.PlayerId != 0:
		for _, id := range b.router.PlayerSockets(m.PlayerId) {
			b.sendMessage(id, m)
		}
	case m.TableId != 0:
		for _, id := range b.router.RoomSockets(m.TableId) {
			b.sendMessage(id, m)
		}
	default:
		log.Warnf("dropping %s message without a target", m.Type)
	}
}

func (b *Broker) trackRoom(m *comm.WSMessage) {
	if !strings.HasSuffix(m.Type, "-ack") || m.TableId == 0 {
		return
	}
	var ack struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(m.Data, &ack); err != nil || !ack.Success {
		return
	}

	switch m.Type {
	case comm.AckType(comm.TypeJoin), comm.AckType(comm.TypeCreateTable):
		b.router.JoinRoom(m.SocketId, m.TableId)
	case comm.AckType(comm.TypeLeave):
		b.router.LeaveRoom(m.SocketId, m.TableId)
	}
}

// send socket message to the web client
func (b *Broker) sendMessage(socketId string, m *comm.WSMessage) {
	conn, ok := b.router.Socket(socketId)
	if !ok {
		return
	}
	out := *m
	out.SocketId = ""
	if err := conn.Send(&out); err != nil {
		log.Warnf("write to socket %s failed: %v", socketId, err)
	}
}
