package server

import (
	"encoding/json"
	"net/http"
	"time"

	"nrow/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

type wsClient struct {
	username string
	conn     *websocket.Conn
	send     chan []byte
	server   *Server
	gameID   string
}

// clientMessage is what browsers send: {"type":"move","index":4},
// {"type":"restart"} or {"type":"new"}.
type clientMessage struct {
	Type  string `json:"type"`
	Index *int   `json:"index"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &wsClient{
		username: username,
		conn:     conn,
		send:     make(chan []byte, 16),
		server:   s,
	}
	s.register(client)

	go client.writePump()
	go client.readPump(c.Query("gameId"), c.Query("regime"), c.Query("mark"))
}

func (s *Server) register(c *wsClient) {
	s.connMu.Lock()
	if old, ok := s.connections[c.username]; ok {
		close(old.send)
	}
	s.connections[c.username] = c
	s.connMu.Unlock()
}

func (s *Server) unregister(c *wsClient) {
	s.connMu.Lock()
	if cur, ok := s.connections[c.username]; ok && cur == c {
		delete(s.connections, c.username)
		close(c.send)
	}
	s.connMu.Unlock()
	c.conn.Close()
}

func (c *wsClient) writePump() {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump binds the connection to a game, rejoining gameId when it belongs
// to the user, and then serves moves until the socket closes.
func (c *wsClient) readPump(gameID, regime, mark string) {
	defer c.server.unregister(c)
	s := c.server

	if g, ok := c.rejoin(gameID); ok {
		c.gameID = g.ID
		s.pushInit(c.username, g)
	} else if !c.startNew(regime, mark) {
		return
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendJSON(gin.H{"type": "error", "message": "malformed message"})
			continue
		}
		switch msg.Type {
		case "move":
			if msg.Index == nil {
				c.sendJSON(gin.H{"type": "error", "message": "index required"})
				continue
			}
			c.handleMove(*msg.Index)
		case "new":
			s.manager.Abandon(c.username)
			c.startNew(regime, mark)
		case "restart":
			g, err := s.manager.Restart(c.gameID)
			if err != nil {
				c.sendJSON(gin.H{"type": "error", "message": err.Error()})
				continue
			}
			s.pushState(c.username, g, nil)
			if bot, next, ok := s.playBotTurn(g); ok {
				s.pushState(c.username, next, &bot)
			}
		default:
			c.sendJSON(gin.H{"type": "error", "message": "unknown message type"})
		}
	}
}

// rejoin finds the game a reconnecting user left: the requested id when it
// is theirs, otherwise their current active game.
func (c *wsClient) rejoin(gameID string) (game.GameState, bool) {
	m := c.server.manager
	if gameID != "" {
		if g, ok := m.GetGame(gameID); ok && g.Username == c.username {
			return g, true
		}
	}
	if g, ok := m.GetGameByUser(c.username); ok && g.Status == game.StatusActive {
		return g, true
	}
	return game.GameState{}, false
}

func (c *wsClient) startNew(regime, mark string) bool {
	g, err := c.server.startGame(c.username, regime, mark)
	if err != nil {
		c.sendJSON(gin.H{"type": "error", "message": err.Error()})
		return false
	}
	c.gameID = g.ID
	c.server.pushInit(c.username, g)
	return true
}

func (c *wsClient) handleMove(index int) {
	s := c.server
	move := game.Move{
		Username: c.username,
		GameID:   s.manager.GameForUser(c.username, c.gameID),
		Index:    index,
	}
	res, g, err := s.manager.HandleMove(move)
	if err != nil {
		c.sendJSON(gin.H{"type": "error", "message": err.Error()})
		return
	}
	c.gameID = g.ID
	s.publishMove(g, res)
	s.pushState(c.username, g, &res)
	if bot, next, ok := s.playBotTurn(g); ok {
		s.pushState(c.username, next, &bot)
	}
}

func (s *Server) pushInit(username string, g game.GameState) {
	s.sendToUser(username, gin.H{
		"type":      "init",
		"you":       username,
		"state":     toState(g),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) pushState(username string, g game.GameState, res *game.MoveResult) {
	payload := gin.H{
		"type":  "state",
		"state": toState(g),
	}
	if res != nil {
		payload["last"] = res
	}
	s.sendToUser(username, payload)
}

func (s *Server) sendToUser(username string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("encode websocket payload")
		return
	}
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	client, ok := s.connections[username]
	if !ok {
		return
	}
	select {
	case client.send <- data:
	default:
		log.Warn().Str("user", username).Msg("websocket send buffer full, dropping message")
	}
}

// sendJSON writes to this connection while it is still the user's current one.
func (c *wsClient) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.server.connMu.RLock()
	defer c.server.connMu.RUnlock()
	if cur, ok := c.server.connections[c.username]; !ok || cur != c {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
