package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"parkingserver/internal/dto"
	"parkingserver/internal/logger"
)

const writeWait = 5 * time.Second

type message struct {
	camera string
	data   []byte
}

type subscription struct {
	conn   *websocket.Conn
	camera string
}

// HubService fans snapshot updates out to connected dashboard viewers.
// Each client may follow a single camera or, with an empty filter, all of them.
type HubService struct {
	clients    map[*websocket.Conn]string
	broadcast  chan message
	register   chan subscription
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]string),
		broadcast:  make(chan message, 64),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes all clients.
func (h *HubService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case sub := <-h.register:
			h.mutex.Lock()
			h.clients[sub.conn] = sub.camera
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", count)

		case msg := <-h.broadcast:
			h.send(msg)
		}
	}
}

func (h *HubService) send(msg message) {
	var failed []*websocket.Conn

	h.mutex.RLock()
	for client, camera := range h.clients {
		if camera != "" && camera != msg.camera {
			continue
		}
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, msg.data); err != nil {
			h.logger.Error("Error sending message: %v", err)
			failed = append(failed, client)
		}
	}
	h.mutex.RUnlock()

	if len(failed) == 0 {
		return
	}
	h.mutex.Lock()
	for _, client := range failed {
		delete(h.clients, client)
		client.Close()
	}
	h.mutex.Unlock()
}

// Register adds a client following camera ("" for every camera).
func (h *HubService) Register(client *websocket.Conn, camera string) {
	select {
	case h.register <- subscription{conn: client, camera: camera}:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for the clients following camera. It never blocks;
// when viewers fall behind the update is dropped.
func (h *HubService) Broadcast(data []byte, camera string) {
	select {
	case h.broadcast <- message{camera: camera, data: data}:
	default:
		h.logger.Warning("Broadcast queue full - dropping update for camera %s", camera)
	}
}

// BroadcastSnapshot encodes snap as JSON and broadcasts it.
func (h *HubService) BroadcastSnapshot(snap dto.StatusSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("Failed to encode snapshot for camera %s: %v", snap.Camera, err)
		return
	}
	h.Broadcast(data, snap.Camera)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
