package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
	"github.com/yourusername/contest-api/internal/service"
	"github.com/yourusername/contest-api/internal/websocket"
	"github.com/yourusername/contest-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения. Подключаться могут и анонимные
// зрители: им доступны широковещательные обновления агрегатов оценок.
type WSHandler struct {
	hub        *websocket.Hub
	wsManager  *websocket.Manager
	jwtService *auth.JWTService
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(hub *websocket.Hub, wsManager *websocket.Manager, jwtService *auth.JWTService) *WSHandler {
	return &WSHandler{
		hub:        hub,
		wsManager:  wsManager,
		jwtService: jwtService,
	}
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin пустой у небраузерных клиентов (мобильное приложение, curl)
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		allowedOrigins := []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}
		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	},
}

// HandleConnection апгрейдит HTTP-запрос до WebSocket.
// Токен передается query-параметром, заголовки при апгрейде недоступны фронту.
// GET /ws?token=...
func (h *WSHandler) HandleConnection(c *gin.Context) {
	userID := ""
	if token := c.Query("token"); token != "" {
		claims, err := h.jwtService.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			return
		}
		userID = strconv.FormatUint(uint64(claims.UserID), 10)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] Upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, h.wsManager, conn, userID)
	client.StartPumps()
}

// RegisterVotingHandlers подключает карточки голосования к WebSocket-сессиям:
// зритель открывает контрол оценки и голосует, не покидая соединения, а
// сервер присылает снимки состояния карточки, включая гашение подтверждения.
func RegisterVotingHandlers(manager *websocket.Manager, sessions *service.VotingSessionService) {
	manager.RegisterHandler("voting:begin", func(data json.RawMessage, client *websocket.Client) error {
		var req struct {
			ParticipantID uint `json:"participant_id"`
		}
		if err := json.Unmarshal(data, &req); err != nil || req.ParticipantID == 0 {
			manager.SendErrorToClient(client, "invalid_payload", "participant_id is required")
			return nil
		}

		state, err := sessions.BeginVoting(client.ID, wsVoterID(client), req.ParticipantID)
		if err != nil {
			code, message := wsErrorCode(err)
			manager.SendErrorToClient(client, code, message)
			return nil
		}
		return manager.SendEventToUser(client.UserID, "voting:state", state)
	})

	manager.RegisterHandler("voting:rate", func(data json.RawMessage, client *websocket.Client) error {
		var req struct {
			ParticipantID uint `json:"participant_id"`
			Value         int  `json:"value"`
		}
		if err := json.Unmarshal(data, &req); err != nil || req.ParticipantID == 0 {
			manager.SendErrorToClient(client, "invalid_payload", "participant_id and value are required")
			return nil
		}

		state, err := sessions.Rate(context.Background(), client.ID, req.ParticipantID, req.Value)
		if err != nil {
			code, message := wsErrorCode(err)
			manager.SendErrorToClient(client, code, message)
			if state == nil {
				return nil
			}
		}
		return manager.SendEventToUser(client.UserID, "voting:state", state)
	})
}

// wsVoterID возвращает числовой id зрителя сессии, 0 для анонимного соединения
func wsVoterID(client *websocket.Client) uint {
	if client.UserID == "" {
		return 0
	}
	id, err := strconv.ParseUint(client.UserID, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// wsErrorCode переводит доменную ошибку в код события server:error
func wsErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return "sign_in_required", "Sign in to rate participants"
	case errors.Is(err, apperrors.ErrVotingClosed):
		return "voting_closed", "Voting is closed for this participant"
	case errors.Is(err, apperrors.ErrInvalidRating):
		return "invalid_rating", err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found", "Participant not found"
	case errors.Is(err, apperrors.ErrWriteFailed):
		return "write_failed", "Vote was not saved, please retry"
	case errors.Is(err, apperrors.ErrConflict):
		return "invalid_state", "Voting card is not in a suitable state"
	default:
		return "internal_error", "Something went wrong"
	}
}
