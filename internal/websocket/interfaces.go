package websocket

// HubInterface объединяет возможности хаба для Manager.
type HubInterface interface {
	// BroadcastJSON отправляет структуру JSON всем клиентам
	BroadcastJSON(v interface{}) error

	// SendJSONToUser отправляет структуру JSON конкретному пользователю
	SendJSONToUser(userID string, v interface{}) error

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
