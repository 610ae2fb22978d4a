package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/contest-api/internal/pkg/errors"
)

// respondWithError переводит доменную ошибку в HTTP-ответ.
// Ошибка записи голоса помечается retryable: клиенту безопасно повторить
// запрос, идемпотентность обеспечивает хранилище.
func respondWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in required", "error_type": "sign_in_required"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "error_type": "forbidden"})
	case errors.Is(err, apperrors.ErrVotingClosed):
		c.JSON(http.StatusForbidden, gin.H{"error": "Voting is closed for this participant", "error_type": "voting_closed"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_rating"})
	case errors.Is(err, apperrors.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_status"})
	case errors.Is(err, apperrors.ErrIncompleteRejection):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rejection requires reason codes or a note", "error_type": "incomplete_rejection"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "conflict"})
	case errors.Is(err, apperrors.ErrWriteFailed):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "Failed to save vote, please retry",
			"error_type": "write_failed",
			"retryable":  true,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_error"})
	}
}

// contextUserID возвращает id пользователя из контекста, 0 для анонима
func contextUserID(c *gin.Context) uint {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
