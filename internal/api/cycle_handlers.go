package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/cycle"
	"github.com/aethra/farmops/internal/dailylog"
	"github.com/aethra/farmops/internal/errors"
	"github.com/aethra/farmops/internal/models"
)

// ListCycles returns cycles for the caller's farm
func (h *Handler) ListCycles(c *gin.Context) {
	actor := actorFrom(c)
	q := h.db.Where("farm_id = ?", actor.FarmID)
	if ghID := c.Query("greenhouse_id"); ghID != "" {
		q = q.Where("greenhouse_id = ?", ghID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var cycles []models.ProductionCycle
	if err := q.Order("created_at DESC").Find(&cycles).Error; err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"production_cycles": cycles})
}

// CreateCycle opens a new production cycle
func (h *Handler) CreateCycle(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermCyclesCreate) {
		respondErr(c, errors.NewPermissionDeniedError("create", "production cycle"))
		return
	}

	var in cycle.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}

	created, err := h.cycles.Create(in, actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"production_cycle": created})
}

// GetCycle returns one cycle
func (h *Handler) GetCycle(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	found, err := h.cycles.Get(id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"production_cycle": found})
}

func (h *Handler) transitionCycle(c *gin.Context, fn func() (*models.ProductionCycle, error)) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermCyclesTransition) {
		respondErr(c, errors.NewPermissionDeniedError("transition", "production cycle"))
		return
	}
	updated, err := fn()
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"production_cycle": updated})
}

func (h *Handler) StartCycle(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	h.transitionCycle(c, func() (*models.ProductionCycle, error) {
		return h.cycles.Start(id, time.Now())
	})
}

func (h *Handler) BeginHarvesting(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	h.transitionCycle(c, func() (*models.ProductionCycle, error) {
		return h.cycles.BeginHarvesting(id)
	})
}

func (h *Handler) CompleteCycle(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	h.transitionCycle(c, func() (*models.ProductionCycle, error) {
		return h.cycles.Complete(id, time.Now())
	})
}

func (h *Handler) AbandonCycle(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)
	h.transitionCycle(c, func() (*models.ProductionCycle, error) {
		return h.cycles.Abandon(id, time.Now(), body.Reason)
	})
}

type upsertDailyLogRequest struct {
	LogDate     time.Time           `json:"log_date" binding:"required"`
	IssuesNotes string              `json:"issues_notes"`
	Items       []dailylog.ItemInput `json:"items"`
}

// UpsertDailyLog creates or replaces the cycle's log for a date
func (h *Handler) UpsertDailyLog(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermDailyLogsWrite) {
		respondErr(c, errors.NewPermissionDeniedError("write", "daily log"))
		return
	}

	cycleID, ok := pathUUID(c)
	if !ok {
		return
	}
	var req upsertDailyLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errors.NewBadRequestError(err.Error()))
		return
	}

	log, err := h.logs.CreateOrUpdate(dailylog.LogInput{
		ProductionCycleID: cycleID,
		LogDate:           req.LogDate,
		IssuesNotes:       req.IssuesNotes,
		Items:             req.Items,
	}, actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily_log": log})
}

// GetDailyLog returns one log with items
func (h *Handler) GetDailyLog(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	log, err := h.logs.Get(id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily_log": log})
}

// SubmitDailyLog finalizes a draft log
func (h *Handler) SubmitDailyLog(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(auth.PermDailyLogsSubmit) {
		respondErr(c, errors.NewPermissionDeniedError("submit", "daily log"))
		return
	}
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	log, err := h.logs.Submit(id, time.Now(), actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily_log": log})
}

// ListAlerts returns unresolved alerts for the caller's farm
func (h *Handler) ListAlerts(c *gin.Context) {
	actor := actorFrom(c)
	alerts, err := h.sweeper.Unresolved(actor.FarmID)
	if err != nil {
		respondErr(c, errors.NewInternalError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}
