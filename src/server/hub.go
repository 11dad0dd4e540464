package server

import (
	"encoding/json"
	"net/http"

	"github.com/crucial-sub/Stock-Lab-sub002/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *QuoteServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Store(int64(len(s.clients)))
			// Send full cumulative state on connect
			s.stateMutex.RLock()
			if s.latestState != nil {
				client.send <- s.latestState
			}
			s.stateMutex.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				s.connections.Store(int64(len(s.clients)))
			}

		case message := <-s.broadcast:
			// Merge the delta into the cumulative state, then fan out the
			// delta itself. New clients get the merged state as INITIAL.
			s.mergeState(message)

			for client := range s.clients {
				select {
				case client.send <- message:
					// Message sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
					s.connections.Store(int64(len(s.clients)))
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

// mergeState folds one UPDATE message into the cumulative INITIAL state.
func (s *QuoteServer) mergeState(message *models.MLatestQuotes) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if s.latestState.Snapshots == nil {
		s.latestState.Snapshots = make(map[string]models.MSnapshot)
	}
	for key, snap := range message.Snapshots {
		s.latestState.Snapshots[key] = snap
	}

	s.latestState.Timestamp = message.Timestamp
	s.latestState.Metrics = message.Metrics
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast converts one flushed batch into an UPDATE message and queues it.
// Conversion happens here so the Hub loop stays free of data processing.
func (s *QuoteServer) Broadcast(batch *models.MBatchUpdate, metrics models.MFeedMetrics) {
	if batch == nil || len(batch.Snapshots) == 0 {
		return
	}

	state := &models.MLatestQuotes{
		Type:      "UPDATE",
		Snapshots: batch.Snapshots,
		Timestamp: batch.FlushedAt,
		Metrics:   metrics,
	}

	// With a 256 deep buffer, blocking here is rare and brief.
	s.broadcast <- state
}

// -----------------------------------------------------------------------------

// SeedState replaces the INITIAL state without broadcasting. Used at startup
// to warm up from persisted snapshots.
func (s *QuoteServer) SeedState(snapshots map[string]models.MSnapshot) {
	if snapshots == nil {
		snapshots = make(map[string]models.MSnapshot)
	}

	s.stateMutex.Lock()
	s.latestState = &models.MLatestQuotes{
		Type:      "INITIAL",
		Snapshots: snapshots,
		Timestamp: 0,
		Metrics:   models.MFeedMetrics{},
	}
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MLatestQuotes, 256),
	}

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *QuoteServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	s.stateMutex.RLock()
	response := s.filteredResponse(cmd.Instruments)
	s.stateMutex.RUnlock()

	// Use select to avoid blocking if client's send buffer is full
	select {
	case client.send <- response:
	default:
		// Client buffer full. The Hub loop prunes slow clients on the next
		// broadcast, so dropping this one response is acceptable.
	}
}

// -----------------------------------------------------------------------------
// Response Filtering
// -----------------------------------------------------------------------------

// filteredResponse builds an INITIAL message restricted to the requested
// instruments. Empty request means everything. Caller holds stateMutex.
func (s *QuoteServer) filteredResponse(instruments []string) *models.MLatestQuotes {
	filtered := make(map[string]models.MSnapshot)
	if len(instruments) == 0 {
		filtered = s.latestState.Snapshots
	} else {
		for key, snap := range s.latestState.Snapshots {
			if contains(instruments, key) {
				filtered[key] = snap
			}
		}
	}

	return &models.MLatestQuotes{
		Type:      "INITIAL",
		Snapshots: filtered,
		Timestamp: s.latestState.Timestamp,
		Metrics:   s.latestState.Metrics,
	}
}
