package comm

import (
	"encoding/json"
)

// client events
const (
	TypeInit        = "init"
	TypeJoin        = "join"
	TypeLeave       = "leave"
	TypePlaceBet    = "placeBet"
	TypeAction      = "action"
	TypeNewRound    = "newRound"
	TypeEndGame     = "endGame"
	TypeCreateTable = "createTable"
	TypeListTables  = "listTables"
	TypeGetBalance  = "getBalance"
)

// WSMessage is the envelope on the websocket and on NATS. The socket service
// stamps SocketId, PlayerId and Name from the authenticated connection before
// forwarding, so whatever a client sends in those fields is ignored.
//
// Outbound, SocketId targets one connection, PlayerId every connection of a
// player and TableId the table room.
type WSMessage struct {
	Type      string          `json:"type"` // e.g. "join", "placeBet-ack", "update"
	Data      json.RawMessage `json:"data,omitempty"`
	SocketId  string          `json:"socketid,omitempty"`
	TableId   int64           `json:"tableId,omitempty"`
	PlayerId  int64           `json:"playerId,omitempty"`
	Name      string          `json:"name,omitempty"`
	RequestId string          `json:"requestId,omitempty"`
}

func AckType(eventType string) string {
	return eventType + "-ack"
}

// Ack answers one client event. Retryable tells the client whether sending
// the same request again may succeed.
type Ack struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	TableId      int64       `json:"tableId,omitempty"`
	Position     *int        `json:"position,omitempty"`
	BetId        string      `json:"betId,omitempty"`
	CurrentRound int         `json:"currentRound,omitempty"`
	Balance      string      `json:"balance,omitempty"`
	State        interface{} `json:"state,omitempty"`
	Result       interface{} `json:"result,omitempty"`
	Tables       interface{} `json:"tables,omitempty"`
	Player       *PlayerData `json:"player,omitempty"`
}

type PlayerData struct {
	Name     string `json:"name"`
	PlayerId int64  `json:"playerId"`
	Balance  string `json:"balance"`
}

// TableRef is the payload of join, leave, newRound and endGame.
type TableRef struct {
	TableId int64 `json:"tableId"`
}
