package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/uerename/internal/domain"
	"github.com/freewebtopdf/uerename/internal/renamer"
)

// RenameService is the part of the rename facade the HTTP adapter drives
type RenameService interface {
	Detect(ctx context.Context, root string) (*domain.ProjectMetadata, error)
	Plan(ctx context.Context, req renamer.Request) (*renamer.Plan, error)
	Apply(ctx context.Context, req renamer.Request) (*domain.SessionResult, error)
	History(ctx context.Context, root string) ([]domain.SessionSummary, error)
}

// Handlers contains all HTTP handlers for the rename API
type Handlers struct {
	service       RenameService
	cache         domain.MetadataCache
	healthChecker domain.HealthChecker
	startTime     time.Time
}

// NewHandlers creates a new instance of API handlers
func NewHandlers(service RenameService, cache domain.MetadataCache, healthChecker domain.HealthChecker) *Handlers {
	return &Handlers{
		service:       service,
		cache:         cache,
		healthChecker: healthChecker,
		startTime:     time.Now(),
	}
}

// DetectRequest represents the request payload for the detect endpoint
// @Description Request payload for project detection
type DetectRequest struct {
	Root string `json:"root" example:"/work/LyraStarterGame"`
}

// RenameRequest represents the request payload for the plan and apply endpoints
// @Description Request payload describing a rename
type RenameRequest struct {
	Root    string `json:"root" example:"/work/LyraStarterGame"`
	NewName string `json:"new_name" example:"SpyroStarterGame"`
	Kind    string `json:"kind,omitempty" example:"project" enums:"project,target,module,plugin"`
	Subject string `json:"subject,omitempty" example:"LyraStarterGameEditor"`
}

// ErrorResponse represents the standard error response format
// @Description Standard error response format
type ErrorResponse struct {
	Status    string `json:"status" example:"error"`
	Code      string `json:"code" example:"PLAN_INVALID_NAME"`
	Message   string `json:"message" example:"new name \"Lyra\" equals the current name"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SuccessResponse represents the standard success response format
// @Description Standard success response format
type SuccessResponse struct {
	Status string `json:"status" example:"success"`
	Data   any    `json:"data"`
}

// HistoryResponse lists rename sessions
// @Description Rename sessions, oldest first
type HistoryResponse struct {
	Sessions []domain.SessionSummary `json:"sessions"`
	Count    int                     `json:"count" example:"2"`
}

// MetricsResponse represents the metrics response
// @Description System metrics response
type MetricsResponse struct {
	Cache  domain.CacheStats `json:"cache"`
	Uptime struct {
		Seconds   float64 `json:"seconds" example:"3600"`
		Timestamp string  `json:"timestamp" example:"2026-01-01T12:00:00Z"`
	} `json:"uptime"`
}

func requestID(c *fiber.Ctx) string {
	if rid, ok := c.Locals("requestid").(string); ok {
		return rid
	}
	return ""
}

func (r RenameRequest) toRequest() renamer.Request {
	return renamer.Request{
		Root:    strings.TrimSpace(r.Root),
		NewName: strings.TrimSpace(r.NewName),
		Kind:    domain.SessionKind(strings.TrimSpace(r.Kind)),
		Subject: strings.TrimSpace(r.Subject),
	}
}

func (h *Handlers) parseRename(c *fiber.Ctx, operation string) (renamer.Request, *domain.AppError) {
	var req RenameRequest
	if err := c.BodyParser(&req); err != nil {
		return renamer.Request{}, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		).WithContext(c.Context(), operation)
	}
	if strings.TrimSpace(req.NewName) == "" {
		return renamer.Request{}, domain.NewAppError(
			domain.ErrValidationFailed,
			"New name is required",
			422,
			map[string]string{"field": "new_name", "reason": "required"},
		).WithContext(c.Context(), operation)
	}
	return req.toRequest(), nil
}

// DetectHandler handles POST /v1/detect requests
// @Summary      Detect project metadata
// @Description  Reads the project descriptor, targets, modules, plugins and config values under a root directory
// @Tags         Rename
// @Accept       json
// @Produce      json
// @Param        request body DetectRequest true "Project root"
// @Success      200 {object} SuccessResponse{data=domain.ProjectMetadata} "Detected metadata"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      404 {object} ErrorResponse "No project descriptor"
// @Failure      409 {object} ErrorResponse "Ambiguous project descriptor"
// @Failure      422 {object} ErrorResponse "Malformed metadata"
// @Router       /v1/detect [post]
func (h *Handlers) DetectHandler(c *fiber.Ctx) error {
	var req DetectRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid JSON payload",
			400,
			map[string]string{"error": err.Error()},
		).WithContext(c.Context(), "detect_request_parsing"))
	}

	meta, err := h.service.Detect(c.Context(), strings.TrimSpace(req.Root))
	if err != nil {
		return h.sendFailure(c, err, "detect")
	}

	return c.Status(200).JSON(SuccessResponse{Status: "success", Data: meta})
}

// PlanHandler handles POST /v1/plan requests
// @Summary      Plan a rename
// @Description  Computes the ordered operation list for a rename without touching the project, plus any conflicts with the tree on disk
// @Tags         Rename
// @Accept       json
// @Produce      json
// @Param        request body RenameRequest true "Rename to plan"
// @Success      200 {object} SuccessResponse{data=renamer.Plan} "Planned operations"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      404 {object} ErrorResponse "Project or subject not found"
// @Failure      422 {object} ErrorResponse "Invalid new name"
// @Router       /v1/plan [post]
func (h *Handlers) PlanHandler(c *fiber.Ctx) error {
	req, appErr := h.parseRename(c, "plan_request_parsing")
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	plan, err := h.service.Plan(c.Context(), req)
	if err != nil {
		return h.sendFailure(c, err, "plan")
	}

	return c.Status(200).JSON(SuccessResponse{Status: "success", Data: plan})
}

// ApplyHandler handles POST /v1/apply requests
// @Summary      Apply a rename
// @Description  Plans and applies a rename as one session. Any failure rolls every applied operation back.
// @Tags         Rename
// @Accept       json
// @Produce      json
// @Param        request body RenameRequest true "Rename to apply"
// @Success      200 {object} SuccessResponse{data=domain.SessionResult} "Session completed"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      409 {object} ErrorResponse "Plan conflict or session in progress"
// @Failure      422 {object} ErrorResponse "Invalid new name"
// @Failure      500 {object} ErrorResponse "Apply failed; details carry the failure report"
// @Router       /v1/apply [post]
func (h *Handlers) ApplyHandler(c *fiber.Ctx) error {
	req, appErr := h.parseRename(c, "apply_request_parsing")
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	result, err := h.service.Apply(c.Context(), req)
	if err != nil {
		return h.sendFailure(c, err, "apply")
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("session_id", result.Session.SessionID).
		Str("final_root", result.Session.FinalRoot).
		Msg("Rename applied")

	return c.Status(200).JSON(SuccessResponse{Status: "success", Data: result})
}

// HistoryHandler handles GET /v1/history requests
// @Summary      Rename history
// @Description  Lists rename sessions that started or ended at root, or every session when root is omitted
// @Tags         Rename
// @Produce      json
// @Param        root query string false "Project root"
// @Success      200 {object} SuccessResponse{data=HistoryResponse} "Sessions"
// @Failure      500 {object} ErrorResponse "Internal server error"
// @Router       /v1/history [get]
func (h *Handlers) HistoryHandler(c *fiber.Ctx) error {
	sessions, err := h.service.History(c.Context(), strings.TrimSpace(c.Query("root")))
	if err != nil {
		return h.sendFailure(c, err, "history")
	}

	return c.Status(200).JSON(SuccessResponse{
		Status: "success",
		Data:   HistoryResponse{Sessions: sessions, Count: len(sessions)},
	})
}

// HealthHandler handles GET /health requests
// @Summary      Health check
// @Description  Returns the health status of the backup store, history log and metadata cache
// @Tags         System
// @Produce      json
// @Success      200 {object} domain.SystemHealth "Service is healthy"
// @Failure      503 {object} domain.SystemHealth "Service is degraded or unhealthy"
// @Router       /health [get]
func (h *Handlers) HealthHandler(c *fiber.Ctx) error {
	health := h.healthChecker.CheckHealth(c.Context())

	status := 200
	if health.Status != domain.HealthStatusHealthy {
		status = 503
	}

	return c.Status(status).JSON(map[string]any{
		"status":     health.Status,
		"timestamp":  health.Timestamp.Format(time.RFC3339),
		"components": health.Components,
		"uptime":     health.Uptime,
	})
}

// MetricsHandler handles GET /metrics requests
// @Summary      System metrics
// @Description  Returns metadata cache statistics and uptime
// @Tags         System
// @Produce      json
// @Success      200 {object} SuccessResponse{data=MetricsResponse} "Successfully retrieved metrics"
// @Router       /metrics [get]
func (h *Handlers) MetricsHandler(c *fiber.Ctx) error {
	var metrics MetricsResponse
	metrics.Cache = h.cache.Stats()
	metrics.Uptime.Seconds = time.Since(h.startTime).Seconds()
	metrics.Uptime.Timestamp = time.Now().UTC().Format(time.RFC3339)

	return c.Status(200).JSON(SuccessResponse{Status: "success", Data: metrics})
}

// sendFailure converts an error returned by the rename service into a response
func (h *Handlers) sendFailure(c *fiber.Ctx, err error, operation string) error {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("operation", operation).
			Msg("Unexpected rename service error")
		appErr = domain.NewAppErrorWithCause(domain.ErrInternal, "Internal server error", 500, err, nil)
	}
	appErr.Operation = operation

	if appErr.StatusCode >= 500 {
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("code", appErr.Code).
			Msg("Rename request failed")
	}
	return h.sendError(c, appErr)
}

// sendError sends a standardized error response
func (h *Handlers) sendError(c *fiber.Ctx, appErr *domain.AppError) error {
	status := appErr.StatusCode
	if status == 0 {
		status = 500
	}
	return c.Status(status).JSON(ErrorResponse{
		Status:    "error",
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: requestID(c),
	})
}
