package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/contest-api/internal/handler/dto"
	"github.com/yourusername/contest-api/internal/service"
)

// RatingHandler обрабатывает запросы голосования
type RatingHandler struct {
	ratingService *service.RatingService
}

// NewRatingHandler создает новый обработчик голосования
func NewRatingHandler(ratingService *service.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

// GetVotingSurface возвращает данные карточки голосования.
// Доступно анонимно: без токена вернется поверхность без персональной оценки.
// GET /api/participants/:participant_id/voting
func (h *RatingHandler) GetVotingSurface(c *gin.Context) {
	participantID := c.MustGet("participant_id").(uint)

	surface, err := h.ratingService.GetVotingSurface(contextUserID(c), participantID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, surface)
}

// Rate записывает голос текущего пользователя за участницу
// POST /api/participants/:participant_id/rate
func (h *RatingHandler) Rate(c *gin.Context) {
	participantID := c.MustGet("participant_id").(uint)

	var req dto.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "error_type": "validation_error"})
		return
	}

	aggregate, err := h.ratingService.Rate(contextUserID(c), participantID, req.Value)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participant_id": participantID,
		"average_rating": aggregate.AverageRating,
		"total_votes":    aggregate.TotalVotes,
		"your_rating":    req.Value,
	})
}
