package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/contest-api/internal/domain/entity"
	"github.com/yourusername/contest-api/internal/domain/repository"
	"github.com/yourusername/contest-api/internal/handler/dto"
	"github.com/yourusername/contest-api/internal/service"
)

// ParticipantHandler обрабатывает запросы анкет участниц
type ParticipantHandler struct {
	participantRepo repository.ParticipantRepository
	statusService   *service.StatusService
	activityService *service.ActivityService
}

// NewParticipantHandler создает новый обработчик участниц
func NewParticipantHandler(
	participantRepo repository.ParticipantRepository,
	statusService *service.StatusService,
	activityService *service.ActivityService,
) *ParticipantHandler {
	return &ParticipantHandler{
		participantRepo: participantRepo,
		statusService:   statusService,
		activityService: activityService,
	}
}

// ListCurrent возвращает участниц текущей недели для публичной витрины
// GET /api/participants
func (h *ParticipantHandler) ListCurrent(c *gin.Context) {
	participants, err := h.participantRepo.GetByStatus(entity.StatusThisWeek)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// Create подает новую анкету от имени текущего пользователя
// POST /api/participants
func (h *ParticipantHandler) Create(c *gin.Context) {
	var req dto.CreateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "error_type": "validation_error"})
		return
	}

	now := time.Now().UTC()
	participant := &entity.Participant{
		UserID:      contextUserID(c),
		Name:        req.Name,
		Location:    req.Location,
		PhotoURL:    req.PhotoURL,
		AdminStatus: entity.StatusPending,
		SubmittedAt: now,
	}
	if err := h.participantRepo.Create(participant); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, participant)
}

// SetStatus назначает статус анкеты (админ)
// PUT /api/admin/participants/:participant_id/status
func (h *ParticipantHandler) SetStatus(c *gin.Context) {
	participantID := c.MustGet("participant_id").(uint)

	var req dto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "error_type": "validation_error"})
		return
	}

	var rejection *entity.RejectionPayload
	if req.Rejection != nil {
		rejection = &entity.RejectionPayload{
			Codes: req.Rejection.Codes,
			Note:  req.Rejection.Note,
		}
	}

	if err := h.statusService.SetStatus(participantID, contextUserID(c), req.Status, rejection); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"participant_id": participantID, "status": req.Status})
}

// GetStatusHistory возвращает восстановленный журнал статусов (админ)
// GET /api/admin/participants/:participant_id/status-history
func (h *ParticipantHandler) GetStatusHistory(c *gin.Context) {
	participantID := c.MustGet("participant_id").(uint)

	entries, err := h.statusService.GetStatusHistory(participantID, contextUserID(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"participant_id": participantID, "history": entries})
}

// GetVoters возвращает сводку голосующих с хронологиями оценок (админ)
// GET /api/admin/participants/:participant_id/voters
func (h *ParticipantHandler) GetVoters(c *gin.Context) {
	participantID := c.MustGet("participant_id").(uint)

	histories, err := h.activityService.ParticipantVoters(participantID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"participant_id": participantID, "voters": histories})
}

// ExportVoters выгружает сводку голосующих в XLSX (админ)
// GET /api/admin/participants/:participant_id/voters/export
func (h *ParticipantHandler) ExportVoters(c *gin.Context) {
	participantID := c.MustGet("participant_id").(uint)

	data, err := h.activityService.ExportParticipantVoters(participantID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="voters.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// GetVoterActivity возвращает активность голосующего по другим участницам (админ)
// GET /api/admin/participants/:participant_id/voters/:voter_id/activity
func (h *ParticipantHandler) GetVoterActivity(c *gin.Context) {
	participantID := c.MustGet("participant_id").(uint)
	voterID := c.MustGet("voter_id").(uint)

	activity, err := h.activityService.GetVoterActivity(voterID, participantID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, activity)
}

// SoftDelete скрывает участницу (админ)
// DELETE /api/admin/participants/:participant_id
func (h *ParticipantHandler) SoftDelete(c *gin.Context) {
	participantID := c.MustGet("participant_id").(uint)

	if err := h.statusService.SoftDelete(participantID); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant_id": participantID, "deleted": true})
}

// Restore возвращает участницу в выборки (админ)
// POST /api/admin/participants/:participant_id/restore
func (h *ParticipantHandler) Restore(c *gin.Context) {
	participantID := c.MustGet("participant_id").(uint)

	if err := h.statusService.Restore(participantID); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participant_id": participantID, "deleted": false})
}

// GetRejectionReasons возвращает действующий словарь причин отклонения (админ)
// GET /api/admin/rejection-reasons
func (h *ParticipantHandler) GetRejectionReasons(c *gin.Context) {
	config, err := h.statusService.CurrentReasonConfig()
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

// UpdateRejectionReasons создает новую версию словаря причин (админ)
// PUT /api/admin/rejection-reasons
func (h *ParticipantHandler) UpdateRejectionReasons(c *gin.Context) {
	var req dto.ReasonConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "error_type": "validation_error"})
		return
	}

	config, err := h.statusService.UpdateReasonConfig(contextUserID(c), req.Codes)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}

// ConcludeWeek завершает неделю и фиксирует итоговые места (админ)
// POST /api/admin/weeks/:week/conclude
func (h *ParticipantHandler) ConcludeWeek(c *gin.Context) {
	week := c.Param("week")
	if week == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Week label is required", "error_type": "validation_error"})
		return
	}

	if err := h.statusService.ConcludeWeek(week, contextUserID(c)); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"week": week, "concluded": true})
}

// GetLeaderboard возвращает участниц недели по итоговым местам
// GET /api/weeks/:week/leaderboard
func (h *ParticipantHandler) GetLeaderboard(c *gin.Context) {
	week := c.Param("week")
	participants, err := h.participantRepo.GetByWeek(week)
	if err != nil {
		respondWithError(c, err)
		return
	}

	sort.SliceStable(participants, func(i, j int) bool {
		a, b := participants[i], participants[j]
		if a.FinalRank != nil && b.FinalRank != nil {
			return *a.FinalRank < *b.FinalRank
		}
		if (a.FinalRank != nil) != (b.FinalRank != nil) {
			return a.FinalRank != nil
		}
		return a.AverageRating > b.AverageRating
	})

	c.JSON(http.StatusOK, gin.H{"week": week, "leaderboard": participants})
}
