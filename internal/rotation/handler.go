package rotation

import (
	"net/http"

	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UpsertEntryRequest configures an agent's rotation slot. Lower priority
// values take earlier turns.
type UpsertEntryRequest struct {
	IsActive bool `json:"isActive"`
	Priority int  `json:"priority" validate:"gte=0,lte=1000"`
}

// EntryResponse is the external shape of a rotation entry.
type EntryResponse struct {
	AgentID  uuid.UUID `json:"agentId"`
	IsActive bool      `json:"isActive"`
	Priority int       `json:"priority"`
}

// CursorResponse reports the last-assigned agent.
type CursorResponse struct {
	CursorAgentID *uuid.UUID `json:"cursorAgentId"`
}

// Handler exposes the rotation admin endpoints.
type Handler struct {
	repo *Repository
	val  *validator.Validator
}

// NewHandler creates a new rotation handler.
func NewHandler(repo *Repository, val *validator.Validator) *Handler {
	return &Handler{repo: repo, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/entries", h.ListEntries)
	rg.PUT("/entries/:agentId", h.UpsertEntry)
	rg.GET("/cursor", h.GetCursor)
}

func (h *Handler) ListEntries(c *gin.Context) {
	entries, err := h.repo.ListEntries(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	result := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, EntryResponse{AgentID: e.AgentID, IsActive: e.IsActive, Priority: e.Priority})
	}
	httpkit.OK(c, result)
}

func (h *Handler) UpsertEntry(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("agentId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid agent id", nil)
		return
	}

	var req UpsertEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	entry := Entry{AgentID: agentID, IsActive: req.IsActive, Priority: req.Priority}
	if err := h.repo.UpsertEntry(c.Request.Context(), entry); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, EntryResponse{AgentID: agentID, IsActive: req.IsActive, Priority: req.Priority})
}

func (h *Handler) GetCursor(c *gin.Context) {
	cursor, err := h.repo.GetCursor(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, CursorResponse{CursorAgentID: cursor})
}
