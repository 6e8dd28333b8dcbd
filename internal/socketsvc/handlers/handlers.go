package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/avvvet/blackjack-services/internal/auth"
	"github.com/avvvet/blackjack-services/internal/comm"
	"github.com/avvvet/blackjack-services/internal/monitor"
	"github.com/avvvet/blackjack-services/internal/socketsvc/ws"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const maxMessageSize = 8 << 10

type Handler struct {
	upgrader websocket.Upgrader
	ws       *ws.Ws
	metrics  *monitor.Metrics
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func NewHandler(s *ws.Ws, metrics *monitor.Metrics) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ws:      s,
		metrics: metrics,
	}
	return h
}

// HandleWebSocket upgrades an authenticated request and forwards the
// client's events to the game service.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	player, err := auth.FromContext(r.Context())
	if err != nil {
		h.CreateResponse(w, Response{Message: "unauthorized", Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := ws.NewClient(uuid.New().String(), player.ID, player.Name, conn)
	h.ws.StoreConnection(client)
	if h.metrics != nil {
		h.metrics.OnlineSockets.Inc()
	}

	log.Infof("New WebSocket connection established: %s player %d", client.Id, player.ID)

	h.ws.HandleConnect(client.Id)

	// Handle WebSocket connection
	go h.handleConnection(client, conn)
}

func (h *Handler) handleConnection(client *ws.Client, conn *websocket.Conn) {
	socketId := client.Id

	// Ensure cleanup happens when connection closes
	defer func() {
		log.Infof("Closing WebSocket connection: %s", socketId)
		conn.Close()
		h.ws.HandleDisconnect(socketId)
		if h.metrics != nil {
			h.metrics.OnlineSockets.Dec()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Check if it's a normal close or unexpected error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			} else {
				log.Infof("WebSocket connection closed normally for socket: %s", socketId)
			}
			break
		}

		// Parse the message
		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, message); err != nil {
			log.Errorf("Failed to unmarshal message from socket %s: %v", socketId, err)
			h.sendErrorToClient(client, "Invalid message format")
			continue // Don't break, just skip this message
		}

		log.Debugf("Received message from socket %s: type=%s", socketId, message.Type)

		// Handle incoming websocket msg from web client
		h.ws.SocketMessage(socketId, message)
	}
}

// sendErrorToClient sends an error message back to the WebSocket client
func (h *Handler) sendErrorToClient(client *ws.Client, errorMsg string) {
	errorResponse := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	if err := client.Send(errorResponse); err != nil {
		log.Errorf("Failed to send error message to client: %v", err)
	}
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "socket service is running at port " + os.Getenv("SOCKET_SERVICE_PORT"),
		Code:    http.StatusOK,
		Data:    map[string]int{"online": h.ws.OnlineCount()},
	})
}
