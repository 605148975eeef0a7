package api

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/models"
	"bitbucket.org/mmdatafocus/recon_backend/recon"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler serves the read-only query surface over the persisted
// reconciliation entities, plus the live event feed. It never mutates
// correlation state; alert resolution is the only write.
//
// The DB is fetched per request from config so routes can be registered
// before the connection is established; the readiness middleware in main
// returns 503 until then.
type Handler struct {
	Notifier *recon.Notifier
	Logger   *logrus.Logger
}

func NewHandler(notifier *recon.Notifier, logger *logrus.Logger) *Handler {
	return &Handler{Notifier: notifier, Logger: logger}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/transactions", h.listTransactions)
	api.GET("/transactions/matched", h.listMatched)
	api.GET("/transactions/failed", h.listFailed)
	api.GET("/transactions/:transactionId", h.getTransaction)
	api.GET("/raw-transactions", h.listRawTransactions)
	api.GET("/alerts", h.listAlerts)
	api.PATCH("/alerts/:id/resolve", h.resolveAlert)
	api.GET("/stats", h.getStats)
	api.GET("/export/results.xlsx", h.exportResults)
	api.GET("/events", h.streamEvents)
}

type pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func paginate(c *gin.Context) (page int, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit
}

func makePagination(page int, limit int, total int64) pagination {
	totalPages := total / int64(limit)
	if total%int64(limit) != 0 {
		totalPages++
	}
	return pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

func (h *Handler) listTransactions(c *gin.Context) {
	db := config.GetDB()
	page, limit := paginate(c)
	status := models.ReconciliationStatus(c.Query("status"))
	var source models.TransactionSource
	if s, ok := models.ParseTransactionSource(c.Query("source")); ok && c.Query("source") != "" {
		source = s
	}

	states, total, err := models.ListTransactionStates(c.Request.Context(), db, status, source, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": states,
		"pagination":   makePagination(page, limit, total),
	})
}

func (h *Handler) listMatched(c *gin.Context) {
	h.listResults(c, true)
}

func (h *Handler) listFailed(c *gin.Context) {
	h.listResults(c, false)
}

func (h *Handler) listResults(c *gin.Context, matched bool) {
	page, limit := paginate(c)

	results, total, err := models.ListReconciliationResults(c.Request.Context(), config.GetDB(), &matched, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": results,
		"pagination":   makePagination(page, limit, total),
	})
}

func (h *Handler) getTransaction(c *gin.Context) {
	db := config.GetDB()
	txnId := c.Param("transactionId")
	ctx := c.Request.Context()

	state, err := models.GetTransactionState(ctx, db, txnId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	raws, err := models.ListTransactionRawByTransaction(ctx, db, txnId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var result *models.ReconciliationResult
	if r, rerr := models.GetReconciliationResult(ctx, db, txnId); rerr == nil {
		result = r
	} else if !errors.Is(rerr, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": rerr.Error()})
		return
	}

	alerts, err := models.ListAlertsByTransaction(ctx, db, txnId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactionId":   txnId,
		"state":           state,
		"rawTransactions": raws,
		"reconciliation":  result,
		"alerts":          alerts,
	})
}

func (h *Handler) listRawTransactions(c *gin.Context) {
	page, limit := paginate(c)
	txnId := c.Query("transactionId")
	var source models.TransactionSource
	if s, ok := models.ParseTransactionSource(c.Query("source")); ok && c.Query("source") != "" {
		source = s
	}

	raws, total, err := models.ListTransactionRaw(c.Request.Context(), config.GetDB(), txnId, source, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rawTransactions": raws,
		"pagination":      makePagination(page, limit, total),
	})
}

func (h *Handler) listAlerts(c *gin.Context) {
	page, limit := paginate(c)

	var resolved *bool
	if v := c.Query("resolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "resolved must be a boolean"})
			return
		}
		resolved = &b
	}
	severity := models.AlertSeverity(c.Query("severity"))

	alerts, total, err := models.ListAlerts(c.Request.Context(), config.GetDB(), resolved, severity, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts":     alerts,
		"pagination": makePagination(page, limit, total),
	})
}

// getStats serves the dashboard summary: per-verdict totals, the incomplete
// backlog, alert totals and the match rate as a percentage.
func (h *Handler) getStats(c *gin.Context) {
	db := config.GetDB()
	ctx := c.Request.Context()

	var countErr error
	count := func(n int64, err error) int64 {
		if err != nil && countErr == nil {
			countErr = err
		}
		return n
	}

	unresolved := false
	total := count(models.CountTransactionStates(ctx, db, ""))
	matched := count(models.CountReconciliationResults(ctx, db, models.ReconStatusMatched))
	amountMismatch := count(models.CountReconciliationResults(ctx, db, models.ReconStatusAmountMismatch))
	statusMismatch := count(models.CountReconciliationResults(ctx, db, models.ReconStatusStatusMismatch))
	timeout := count(models.CountReconciliationResults(ctx, db, models.ReconStatusTimeoutMissing))
	incomplete := count(models.CountTransactionStates(ctx, db, models.ReconStatusIncomplete))
	totalAlerts := count(models.CountAlerts(ctx, db, nil))
	unresolvedAlerts := count(models.CountAlerts(ctx, db, &unresolved))
	if countErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": countErr.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalTransactions": total,
		"matched":           matched,
		"amountMismatch":    amountMismatch,
		"statusMismatch":    statusMismatch,
		"timeout":           timeout,
		"incomplete":        incomplete,
		"totalAlerts":       totalAlerts,
		"unresolvedAlerts":  unresolvedAlerts,
		"matchRate":         matchRate(total, matched),
	})
}

// matchRate is the MATCHED share of all tracked transactions, in percent.
func matchRate(total int64, matched int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total) * 100
}

func (h *Handler) resolveAlert(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	alert, err := models.ResolveAlert(c.Request.Context(), config.GetDB(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alert)
}
