package mailbox

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"
)

// RegisterGrantRequest carries a new OAuth grant from the admin console.
type RegisterGrantRequest struct {
	AgentID      string `json:"agentId" validate:"required,uuid"`
	Mailbox      string `json:"mailbox" validate:"required,email"`
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
	ExpiresAt    string `json:"expiresAt" validate:"required"`
}

// TokenResponse is the admin view of a stored grant. Secrets stay out.
type TokenResponse struct {
	ID        uuid.UUID `json:"id"`
	AgentID   uuid.UUID `json:"agentId"`
	Mailbox   string    `json:"mailbox"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsActive  bool      `json:"isActive"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toTokenResponse(t TokenRecord) TokenResponse {
	return TokenResponse{
		ID:        t.ID,
		AgentID:   t.AgentID,
		Mailbox:   t.Mailbox,
		ExpiresAt: t.ExpiresAt,
		IsActive:  t.IsActive,
		UpdatedAt: t.UpdatedAt,
	}
}

// Handler exposes the token admin surface.
type Handler struct {
	service *Service
	val     *validator.Validator
}

func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// RegisterRoutes mounts the token admin endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListTokens)
	rg.POST("", h.RegisterGrant)
	rg.POST("/sweep", h.SweepTokens)
	rg.DELETE("/:id", h.DeactivateToken)
}

// ListTokens handles GET /admin/tokens.
func (h *Handler) ListTokens(c *gin.Context) {
	tokens, err := h.service.ListTokens(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	out := make([]TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toTokenResponse(t))
	}
	httpkit.OK(c, gin.H{"tokens": out})
}

// RegisterGrant handles POST /admin/tokens.
func (h *Handler) RegisterGrant(c *gin.Context) {
	var req RegisterGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("validation failed"))
		return
	}

	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid agent id"))
		return
	}
	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("expiresAt must be RFC 3339"))
		return
	}

	rec, err := h.service.RegisterGrant(c.Request.Context(), agentID, req.Mailbox, req.AccessToken, req.RefreshToken, expiresAt)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTokenResponse(rec))
}

// SweepTokens handles POST /admin/tokens/sweep.
func (h *Handler) SweepTokens(c *gin.Context) {
	result, err := h.service.Sweep(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, result)
}

// DeactivateToken handles DELETE /admin/tokens/:id.
func (h *Handler) DeactivateToken(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid token id"))
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			httpkit.HandleError(c, apperr.NotFound("token not found"))
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
