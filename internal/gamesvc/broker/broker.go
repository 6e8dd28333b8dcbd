package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/avvvet/blackjack-services/internal/comm"
	"github.com/avvvet/blackjack-services/internal/gamesvc/engine"
	"github.com/avvvet/blackjack-services/internal/gamesvc/service"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const requestTimeout = 10 * time.Second

type Broker struct {
	Conn          *nats.Conn
	GameService   *service.GameService
	LedgerService *service.LedgerService

	replyTopic string
}

func NewBroker(nc *nats.Conn, gameService *service.GameService, ledgerService *service.LedgerService, replyTopic string) *Broker {
	return &Broker{
		Conn:          nc,
		GameService:   gameService,
		LedgerService: ledgerService,
		replyTopic:    replyTopic,
	}
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	for _, out := range b.Handle(ctx, msg) {
		b.publishMessage(out)
	}
}

// Handle runs one client event and returns the ack followed by whatever the
// operation broadcasts.
func (b *Broker) Handle(ctx context.Context, msg *comm.WSMessage) []*comm.WSMessage {
	ack, res, err := b.dispatch(ctx, msg)
	if err != nil {
		ack = comm.Ack{
			Success:   false,
			Error:     apperr.Message(err),
			Kind:      string(apperr.KindOf(err)),
			Retryable: apperr.Retryable(err),
		}
		fields := log.Fields{"type": msg.Type, "player": msg.PlayerId, "table": msg.TableId}
		if apperr.Is(err, apperr.KindTransient) {
			log.WithFields(fields).Errorf("request failed: %v", err)
		} else {
			log.WithFields(fields).Debugf("request rejected: %v", err)
		}
	}

	out := []*comm.WSMessage{b.ackMessage(msg, ack)}
	if res != nil {
		out = append(out, EventMessages(res)...)
	}
	return out
}

func (b *Broker) dispatch(ctx context.Context, msg *comm.WSMessage) (comm.Ack, *service.Result, error) {
	if msg.PlayerId <= 0 {
		return comm.Ack{}, nil, apperr.Unauthorized("unauthenticated connection")
	}

	switch msg.Type {
	case comm.TypeInit:
		p, _, err := b.LedgerService.EnsurePlayer(ctx, msg.PlayerId, msg.Name)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, Player: &comm.PlayerData{
			Name:     p.Name,
			PlayerId: p.ID,
			Balance:  p.Balance.StringFixed(2),
		}}, nil, nil

	case comm.TypeGetBalance:
		balance, err := b.LedgerService.Balance(ctx, msg.PlayerId)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, Balance: balance.StringFixed(2)}, nil, nil

	case comm.TypeListTables:
		tables, err := b.GameService.ListTables(ctx)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, Tables: tables}, nil, nil

	case comm.TypeCreateTable:
		var req service.CreateTableRequest
		if err := decode(msg.Data, &req); err != nil {
			return comm.Ack{}, nil, err
		}
		res, err := b.GameService.CreateGame(ctx, msg.PlayerId, msg.Name, req)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, TableId: res.Table.ID, Position: &res.Seat.Position, State: res.View}, res, nil

	case comm.TypeJoin:
		tableId, err := tableRef(msg)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		res, err := b.GameService.JoinGame(ctx, tableId, msg.PlayerId, msg.Name)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, TableId: tableId, Position: &res.Seat.Position, State: res.View}, res, nil

	case comm.TypeLeave:
		tableId, err := tableRef(msg)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		res, err := b.GameService.LeaveGame(ctx, tableId, msg.PlayerId)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, TableId: tableId}, res, nil

	case comm.TypePlaceBet:
		tableId, err := tableRef(msg)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		var req service.BetRequest
		if err := decode(msg.Data, &req); err != nil {
			return comm.Ack{}, nil, err
		}
		res, err := b.GameService.PlaceBet(ctx, tableId, msg.PlayerId, req)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, TableId: tableId, BetId: res.Bet.ID}, res, nil

	case comm.TypeAction:
		tableId, err := tableRef(msg)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		var action engine.Action
		if err := decode(msg.Data, &action); err != nil {
			return comm.Ack{}, nil, err
		}
		res, err := b.GameService.PerformAction(ctx, tableId, msg.PlayerId, action)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, TableId: tableId, Result: res.Outcome}, res, nil

	case comm.TypeNewRound:
		tableId, err := tableRef(msg)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		res, err := b.GameService.StartNewRound(ctx, tableId, msg.PlayerId)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, TableId: tableId, CurrentRound: res.Table.CurrentRound}, res, nil

	case comm.TypeEndGame:
		tableId, err := tableRef(msg)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		res, err := b.GameService.EndGame(ctx, tableId, msg.PlayerId)
		if err != nil {
			return comm.Ack{}, nil, err
		}
		return comm.Ack{Success: true, TableId: tableId}, res, nil

	default:
		return comm.Ack{}, nil, apperr.BadRequest("unknown event %q", msg.Type)
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Validation("malformed payload: %s", err)
	}
	return nil
}

// tableRef prefers the table named in the payload over the socket's room.
func tableRef(msg *comm.WSMessage) (int64, error) {
	var ref comm.TableRef
	if err := decode(msg.Data, &ref); err != nil {
		return 0, err
	}
	if ref.TableId == 0 {
		ref.TableId = msg.TableId
	}
	if ref.TableId <= 0 {
		return 0, apperr.Validation("tableId is required")
	}
	return ref.TableId, nil
}

func (b *Broker) ackMessage(req *comm.WSMessage, ack comm.Ack) *comm.WSMessage {
	data, err := json.Marshal(ack)
	if err != nil {
		log.Errorf("unable to marshal ack for %s: %s", req.Type, err)
		data = []byte(`{"success":false,"error":"internal error"}`)
	}
	return &comm.WSMessage{
		Type:      comm.AckType(req.Type),
		Data:      data,
		SocketId:  req.SocketId,
		TableId:   ack.TableId,
		PlayerId:  req.PlayerId,
		RequestId: req.RequestId,
	}
}

// EventMessages turns service events into outbound messages. Unicast events
// carry the target player, broadcasts only the table.
func EventMessages(res *service.Result) []*comm.WSMessage {
	out := make([]*comm.WSMessage, 0, len(res.Events))
	for _, e := range res.Events {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			log.Errorf("unable to marshal %s event for table %d: %s", e.Kind, e.TableID, err)
			continue
		}
		m := &comm.WSMessage{Type: string(e.Kind), Data: data, TableId: e.TableID}
		if e.Unicast() {
			m.PlayerId = e.PlayerID
		}
		out = append(out, m)
	}
	return out
}

// PublishResults broadcasts the events of operations that did not come from a
// client, such as expired turns.
func (b *Broker) PublishResults(results []*service.Result) {
	for _, res := range results {
		for _, m := range EventMessages(res) {
			b.publishMessage(m)
		}
	}
}

// Sweep expires overdue turns once and publishes what changed. It returns
// the number of tables it touched.
func (b *Broker) Sweep(ctx context.Context) int {
	results, err := b.GameService.ExpireOverdueTurns(ctx)
	if err != nil {
		log.Errorf("expire overdue turns: %v", err)
	}
	if len(results) > 0 {
		log.Infof("expired turns on %d tables", len(results))
		b.PublishResults(results)
	}
	return len(results)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (b *Broker) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Sweep(ctx)
		}
	}
}

func (b *Broker) publishMessage(m *comm.WSMessage) {
	payload, err := json.Marshal(m)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	b.Publish(b.replyTopic, payload)
}

// consume message from socket service (Queue)
func (b *Broker) QueueSubscribe(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message for socket service to consume
func (b *Broker) Publish(topic string, payload []byte) error {
	if b.Conn == nil {
		log.Warnf("no NATS connection, dropping message for %s", topic)
		return nats.ErrInvalidConnection
	}
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
