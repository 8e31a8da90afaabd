package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mailroom/backend/internal/auth"
	"mailroom/backend/internal/scan"
)

// TokenValidator 访问令牌校验接口
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// 如果允许所有来源
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			// 获取请求的 Origin
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 如果没有 Origin，检查是否是同源请求
				return true
			}

			// 检查 Origin 是否在允许列表中
			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}

			return false
		},
	}
}

// MessageType 定义 WebSocket 消息类型
type MessageType string

const (
	MessageTypeScanProgress MessageType = "scan_progress"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypeError        MessageType = "error"
)

// Message 定义 WebSocket 消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个 WebSocket 客户端连接
type Client struct {
	ID       string
	UserID   string // 操作员 ID（JWT 认证）
	Username string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	log      *zap.Logger
}

// Hub 管理所有 WebSocket 连接。
//
// 每个连接归属一个操作员，扫描服务按操作员推送进度事件，
// 同一操作员的多个标签页都会收到。
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	operators      map[string]map[string]*Client // operatorID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *BroadcastMessage
	mu             sync.RWMutex
	log            *zap.Logger
	allowedOrigins []string
	validator      TokenValidator
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	OperatorID string
	Message    *Message
}

// NewHub 创建 WebSocket Hub
func NewHub(allowedOrigins []string, validator TokenValidator, log *zap.Logger) *Hub {
	// 如果没有配置，默认允许所有
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		operators:      make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 256),
		log:            log,
		allowedOrigins: allowedOrigins,
		validator:      validator,
	}
}

// Run 启动 Hub
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			if h.operators[client.UserID] == nil {
				h.operators[client.UserID] = make(map[string]*Client)
			}
			h.operators[client.UserID][client.ID] = client
			h.mu.Unlock()
			h.log.Info("client registered",
				zap.String("id", client.ID),
				zap.String("operator_id", client.UserID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				if clients, exists := h.operators[client.UserID]; exists {
					delete(clients, client.ID)
					if len(clients) == 0 {
						delete(h.operators, client.UserID)
					}
				}
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Info("client unregistered", zap.String("id", client.ID))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToOperator(msg.OperatorID, msg.Message)

		case <-ticker.C:
			// 定期 ping 所有客户端
			h.pingAllClients()
		}
	}
}

// Publish 向操作员的所有连接推送扫描进度事件。
// 实现 scan.ProgressNotifier。
func (h *Hub) Publish(operatorID string, event scan.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal scan progress event", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageTypeScanProgress,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- &BroadcastMessage{OperatorID: operatorID, Message: msg}:
	default:
		h.log.Warn("broadcast channel full, dropping scan progress event",
			zap.String("operator_id", operatorID))
	}
}

// broadcastToOperator 向归属某操作员的客户端广播消息
func (h *Hub) broadcastToOperator(operatorID string, msg *Message) {
	h.mu.RLock()
	clients := h.operators[operatorID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

// pingAllClients 向所有客户端发送 ping
func (h *Hub) pingAllClients() {
	msg := &Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			// 跳过阻塞的客户端
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.operators = make(map[string]map[string]*Client)
}

// authenticateClient 认证客户端
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	// 从 URL 参数或 Header 获取 token
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}

	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		return nil, errors.New("invalid authentication token")
	}

	return &Client{
		ID:       generateClientID(),
		UserID:   claims.UserID,
		Username: claims.Username,
		log:      h.log,
	}, nil
}

// HandleWebSocket 处理 WebSocket 连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	// 使用 Hub 配置的允许 Origin 创建 upgrader
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		// 认证客户端
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		// 升级连接
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		// 设置连接和 Hub
		client.conn = conn
		client.hub = hub
		client.send = make(chan []byte, 256)

		// 注册客户端
		hub.register <- client

		// 启动读写协程
		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			break
		}

		// 进度通道是单向的，客户端只需要应答心跳
		if msg.Type == MessageTypePong {
			c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// generateClientID 生成客户端 ID
func generateClientID() string {
	return uuid.New().String()
}
