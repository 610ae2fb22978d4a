package websocket

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время на запись сообщения клиенту
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Период отправки ping; должен быть меньше pongWait
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 4096
)

// Client — одно WebSocket-соединение зрителя
type Client struct {
	// ID — уникальный идентификатор соединения
	ID string

	// UserID — идентификатор пользователя; пустой для анонимных зрителей,
	// которым доступны только широковещательные обновления агрегатов
	UserID string

	hub     *Hub
	manager *Manager
	conn    *websocket.Conn
	send    chan []byte
}

// NewClient создает клиента и регистрирует его в хабе
func NewClient(hub *Hub, manager *Manager, conn *websocket.Conn, userID string) *Client {
	client := &Client{
		ID:      uuid.New().String(),
		UserID:  userID,
		hub:     hub,
		manager: manager,
		conn:    conn,
		send:    make(chan []byte, 64),
	}
	hub.register <- client
	return client
}

// StartPumps запускает циклы чтения и записи соединения
func (c *Client) StartPumps() {
	go c.writePump()
	go c.readPump()
}

// readPump читает сообщения клиента и передает их менеджеру
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Client] Unexpected close from %s: %v", c.ID, err)
			}
			return
		}
		if c.manager != nil {
			if err := c.manager.HandleMessage(message, c); err != nil {
				return
			}
		}
	}
}

// writePump пишет сообщения из канала send и поддерживает соединение ping-ами
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Хаб закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
