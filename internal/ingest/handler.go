package ingest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

// pixelGIF is a 1x1 transparent GIF. The pixel endpoint always returns
// it regardless of pipeline outcome.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// WebhookRequest is the signed third-party platform payload.
type WebhookRequest struct {
	ID    string `json:"id" validate:"required"`
	Event string `json:"event"`
	Lead  struct {
		FirstName string   `json:"firstName"`
		LastName  string   `json:"lastName"`
		Email     string   `json:"email"`
		Phone     string   `json:"phone"`
		Emails    []string `json:"emails"`
		Phones    []string `json:"phones"`
		Message   string   `json:"message"`
	} `json:"lead" validate:"required"`
}

// SubmitRequest is a direct API lead submission.
type SubmitRequest struct {
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Emails         []string `json:"emails"`
	Phones         []string `json:"phones"`
	Message        string   `json:"message"`
	IdempotencyKey string   `json:"idempotencyKey"`
}

// Handler exposes the ingestion endpoints.
type Handler struct {
	pipeline *Pipeline
	sweeper  *Sweeper
	val      *validator.Validator
	log      *logger.Logger
}

func NewHandler(pipeline *Pipeline, sweeper *Sweeper, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{pipeline: pipeline, sweeper: sweeper, val: val, log: log}
}

// Webhook handles POST /webhook/leads. The signature middleware has
// already authenticated the payload.
func (h *Handler) Webhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body").WithCode("invalid_body"))
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation("id and lead are required").WithCode("validation_failed"))
		return
	}

	raw := RawLead{
		Source:     SourceWebhook,
		MessageID:  "webhook:" + req.ID,
		FirstName:  req.Lead.FirstName,
		LastName:   req.Lead.LastName,
		Emails:     gatherIdentity(req.Lead.Email, req.Lead.Emails),
		Phones:     gatherIdentity(req.Lead.Phone, req.Lead.Phones),
		Message:    req.Lead.Message,
		IsLead:     true,
		Confidence: 1,
	}

	out, err := h.pipeline.Ingest(c.Request.Context(), raw)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, out)
}

// Pixel handles GET /track/pixel.gif. Identity arrives as query params;
// the response is always the tracking pixel so broken embeds never show.
func (h *Handler) Pixel(c *gin.Context) {
	raw := RawLead{
		Source:     SourcePixel,
		MessageID:  keyedMessageID("pixel", c.Query("k")),
		FirstName:  c.Query("fn"),
		LastName:   c.Query("ln"),
		Emails:     gatherIdentity(c.Query("e"), nil),
		Phones:     gatherIdentity(c.Query("p"), nil),
		Message:    c.Query("src"),
		IsLead:     true,
		Confidence: 1,
	}

	if _, err := h.pipeline.Ingest(c.Request.Context(), raw); err != nil {
		h.log.Error("ingest: pixel pipeline failed", "error", err)
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/gif", pixelGIF)
}

// Submit handles POST /leads/submit behind the shared-secret header.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body").WithCode("invalid_body"))
		return
	}

	raw := RawLead{
		Source:     SourceAPI,
		MessageID:  keyedMessageID("submit", req.IdempotencyKey),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Emails:     gatherIdentity(req.Email, req.Emails),
		Phones:     gatherIdentity(req.Phone, req.Phones),
		Message:    req.Message,
		IsLead:     true,
		Confidence: 1,
	}

	out, err := h.pipeline.Ingest(c.Request.Context(), raw)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	if out.Result == OutcomeRejected {
		httpkit.HandleError(c, apperr.Validation("lead rejected: "+out.Reason).WithCode(out.Reason))
		return
	}
	c.JSON(http.StatusAccepted, out)
}

// SweepMailboxes handles POST /admin/ingest/sweep.
func (h *Handler) SweepMailboxes(c *gin.Context) {
	if h.sweeper == nil {
		httpkit.HandleError(c, apperr.Unavailable("mailbox sweep requires a configured classifier").WithCode("classifier_disabled"))
		return
	}

	report, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, report)
}

func gatherIdentity(primary string, rest []string) []string {
	out := make([]string, 0, len(rest)+1)
	if primary != "" {
		out = append(out, primary)
	}
	out = append(out, rest...)
	return out
}

// keyedMessageID builds a ledger key from a caller-supplied idempotency
// key. Callers that send no key opt out of the ledger.
func keyedMessageID(prefix, key string) string {
	if key == "" {
		return ""
	}
	return prefix + ":" + key
}
