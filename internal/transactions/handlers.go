package transactions

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reward360/pointsguard/internal/pagination"
	"github.com/reward360/pointsguard/internal/validation"
)

// Default and maximum page size for the per-user history endpoint.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// SubmitRequest is the request body for submitting a transaction.
type SubmitRequest struct {
	ExternalID     string     `json:"externalId"`
	AccountID      string     `json:"accountId"`
	UserID         *int64     `json:"userId"`
	Type           string     `json:"type"`
	PointsEarned   *int64     `json:"pointsEarned"`
	PointsRedeemed *int64     `json:"pointsRedeemed"`
	Date           string     `json:"date"`
	Note           string     `json:"note"`
	CreatedAt      *time.Time `json:"createdAt"` // optional, for upstream backfill
}

// Handler provides HTTP endpoints for transaction scoring and review.
type Handler struct {
	service *Service
}

// NewHandler creates a new transactions handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the transaction routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions", h.Create)
	r.GET("/transactions", h.List)
	r.GET("/transactions/export", h.ExportCSV)
	r.GET("/transactions/:id", h.Get)
	r.POST("/transactions/:id/review", h.MarkReview)
	r.POST("/transactions/:id/block", h.MarkBlocked)
	r.POST("/transactions/:id/clear", h.MarkCleared)
	r.GET("/users/:userId/transactions", h.UserHistory)
}

// Create handles POST /v1/transactions
func (h *Handler) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Malformed transaction body",
		})
		return
	}

	if verr := validateSubmit(&req); verr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": verr.Error(),
		})
		return
	}

	tx := &Transaction{
		ExternalID:     validation.SanitizeString(req.ExternalID, validation.MaxFieldLength),
		AccountID:      validation.SanitizeString(req.AccountID, validation.MaxFieldLength),
		UserID:         req.UserID,
		Type:           strings.ToUpper(strings.TrimSpace(req.Type)),
		PointsEarned:   req.PointsEarned,
		PointsRedeemed: req.PointsRedeemed,
		Date:           req.Date,
		Note:           validation.SanitizeString(req.Note, validation.MaxNoteLength),
	}
	if req.CreatedAt != nil {
		tx.CreatedAt = *req.CreatedAt
	}

	scored, err := h.service.Submit(c.Request.Context(), tx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "storage_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": scored})
}

// validateSubmit enforces the non-negativity and format constraints the
// rule chain assumes.
func validateSubmit(req *SubmitRequest) validation.Errors {
	return validation.Validate(
		validation.NonNegative("pointsEarned", req.PointsEarned),
		validation.NonNegative("pointsRedeemed", req.PointsRedeemed),
		validation.DateFormat("date", req.Date),
	)
}

// List handles GET /v1/transactions
func (h *Handler) List(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	txs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "storage_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"count":        len(txs),
	})
}

// ExportCSV handles GET /v1/transactions/export with the same filters as List.
func (h *Handler) ExportCSV(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	txs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "storage_error",
			"message": err.Error(),
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename=transactions.csv`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	_ = WriteCSV(c.Writer, txs)
}

// Get handles GET /v1/transactions/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	tx, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// MarkReview handles POST /v1/transactions/:id/review
func (h *Handler) MarkReview(c *gin.Context) { h.transition(c, StatusReview) }

// MarkBlocked handles POST /v1/transactions/:id/block
func (h *Handler) MarkBlocked(c *gin.Context) { h.transition(c, StatusBlocked) }

// MarkCleared handles POST /v1/transactions/:id/clear
func (h *Handler) MarkCleared(c *gin.Context) { h.transition(c, StatusCleared) }

func (h *Handler) transition(c *gin.Context, status Status) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	tx, err := h.service.Transition(c.Request.Context(), id, status)
	if err != nil {
		h.storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// UserHistory handles GET /v1/users/:userId/transactions
func (h *Handler) UserHistory(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_user_id",
			"message": "User id must be numeric",
		})
		return
	}

	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "Limit must be a positive integer",
			})
			return
		}
		if parsed > maxHistoryLimit {
			parsed = maxHistoryLimit
		}
		limit = parsed
	}

	txs, next, hasMore, err := h.service.UserHistory(c.Request.Context(), userID, c.Query("cursor"), limit)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_cursor",
				"message": "Cursor is malformed or expired",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "storage_error",
			"message": err.Error(),
		})
		return
	}

	resp := gin.H{
		"transactions": txs,
		"count":        len(txs),
		"has_more":     hasMore,
	}
	if next != "" {
		resp["next_cursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

// storeError maps store errors onto HTTP responses: missing rows are 404,
// everything else is a persistence failure.
func (h *Handler) storeError(c *gin.Context, err error) {
	if errors.Is(err, ErrTransactionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Transaction not found",
		})
		return
	}
	if errors.Is(err, ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_status",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "storage_error",
		"message": err.Error(),
	})
}

// parseID reads the :id path param, responding 400 on non-numeric input.
func (h *Handler) parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_id",
			"message": "Transaction id must be numeric",
		})
		return 0, false
	}
	return id, true
}

// parseFilter reads the listing query params shared by List and ExportCSV.
// On a malformed param it writes the 400 response and returns ok=false.
func (h *Handler) parseFilter(c *gin.Context) (Filter, bool) {
	var f Filter
	f.AccountID = c.Query("accountId")
	f.RiskLevel = RiskLevel(strings.ToUpper(c.Query("riskLevel")))
	f.Status = Status(strings.ToUpper(c.Query("status")))

	badParam := func(name string) (Filter, bool) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_filter",
			"message": "Malformed " + name + " parameter",
		})
		return Filter{}, false
	}

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badParam("from")
		}
		f.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badParam("to")
		}
		f.To = t
	}
	if v := c.Query("minPoints"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badParam("minPoints")
		}
		f.MinPoints = &n
	}
	if v := c.Query("maxPoints"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return badParam("maxPoints")
		}
		f.MaxPoints = &n
	}
	return f, true
}
