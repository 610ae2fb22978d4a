package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub поддерживает набор активных клиентов и рассылает им сообщения.
// Основное событие платформы — обновление агрегата оценок участницы,
// оно уходит всем открытым карточкам.
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Клиенты по идентификатору пользователя; у пользователя может быть
	// несколько соединений (несколько вкладок)
	userClients map[string][]*Client

	// Канал регистрации
	register chan *Client

	// Канал отмены регистрации
	unregister chan *Client

	// Канал широковещательной рассылки
	broadcast chan []byte

	mu sync.RWMutex

	// onDisconnect вызывается после снятия клиента с регистрации;
	// освобождает ресурсы сессии (карточки голосования)
	onDisconnect func(clientID string)

	done chan struct{}
}

// NewHub создает новый хаб
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan []byte, 256),
		done:        make(chan struct{}),
	}
}

// Run запускает цикл обработки событий хаба
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Медленный клиент: буфер переполнен, соединение закрывается
					go func(c *Client) { h.unregister <- c }(client)
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			return
		}
	}
}

// Stop останавливает цикл хаба
func (h *Hub) Stop() {
	close(h.done)
}

// SetDisconnectHandler задает обработчик отключения клиента
func (h *Hub) SetDisconnectHandler(fn func(clientID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconnect = fn
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	if client.UserID != "" {
		h.userClients[client.UserID] = append(h.userClients[client.UserID], client)
	}
	log.Printf("[Hub] Client %s connected (user=%s), total: %d", client.ID, client.UserID, len(h.clients))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)

	if client.UserID != "" {
		remaining := h.userClients[client.UserID][:0]
		for _, c := range h.userClients[client.UserID] {
			if c != client {
				remaining = append(remaining, c)
			}
		}
		if len(remaining) == 0 {
			delete(h.userClients, client.UserID)
		} else {
			h.userClients[client.UserID] = remaining
		}
	}
	log.Printf("[Hub] Client %s disconnected, total: %d", client.ID, len(h.clients))
	onDisconnect := h.onDisconnect
	h.mu.Unlock()

	if onDisconnect != nil {
		onDisconnect(client.ID)
	}
}

// Broadcast отправляет байтовое сообщение всем клиентам
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Printf("[Hub] Broadcast buffer full, message dropped")
	}
}

// BroadcastJSON отправляет структуру JSON всем клиентам
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// SendJSONToUser отправляет структуру JSON всем соединениям пользователя
func (h *Hub) SendJSONToUser(userID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := append([]*Client(nil), h.userClients[userID]...)
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- data:
		default:
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
	return nil
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
