package provisioning

import (
	"errors"

	"provisioner/core/logger"
	"provisioner/core/protocol"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorResponse is the body of a request that produced no response message.
type ErrorResponse struct {
	RequestID string          `json:"request_id,omitempty"`
	Error     *protocol.Error `json:"error"`
}

// Handler serves the provisioning protocol over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the provisioning routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/provisioning")
	group.Post("/", h.HandleRequest)
	group.Post("/calc", h.kind(protocol.KindCalc))
	group.Post("/diff", h.kind(protocol.KindDiff))
	group.Post("/sync", h.kind(protocol.KindSync))
	group.Post("/bulk/calc", h.kind(protocol.KindBulkCalc))
	group.Post("/bulk/diff", h.kind(protocol.KindBulkDiff))
	group.Post("/bulk/sync", h.kind(protocol.KindBulkSync))
	group.Post("/changelog/run", h.HandleChangelogRun)
	group.Get("/changelog/checkpoint", h.HandleCheckpoint)
}

// HandleRequest executes a request whose kind is given in the body.
// @Summary Execute Provisioning Request
// @Description Runs calc, diff, sync or their bulk variants. The kind field selects the operation; return_data selects identifier, data or everything.
// @Tags provisioning
// @Accept json
// @Produce json
// @Param request body protocol.Request true "Provisioning request"
// @Success 200 {object} map[string]interface{} "Response message"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 503 {object} ErrorResponse "Target unreachable"
// @Router /provisioning [post]
func (h *Handler) HandleRequest(c *fiber.Ctx) error {
	req, err := protocol.DecodeRequest(c.Body())
	if err != nil {
		return h.badRequest(c, err)
	}
	return h.execute(c, req)
}

// kind returns a handler for requests of one fixed kind.
// @Summary Execute Provisioning Operation
// @Description Runs the operation named by the path. Single-entity operations need an entity; bulk operations take an optional filter.
// @Tags provisioning
// @Accept json
// @Produce json
// @Param request body protocol.Request false "Provisioning request"
// @Success 200 {object} map[string]interface{} "Response message"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 503 {object} ErrorResponse "Target unreachable"
// @Router /provisioning/{operation} [post]
// @Router /provisioning/bulk/{operation} [post]
func (h *Handler) kind(kind protocol.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := protocol.DecodeRequestAs(c.Body(), kind)
		if err != nil {
			return h.badRequest(c, err)
		}
		return h.execute(c, req)
	}
}

func (h *Handler) execute(c *fiber.Ctx, req *protocol.Request) error {
	l := logger.WithRayID(h.logger, c).With(
		zap.String("request_id", req.RequestID),
		zap.String("kind", string(req.Kind)),
	)
	if req.Entity != nil {
		l = l.With(zap.String("entity", req.Entity.String()))
	}

	resp, err := h.service.Execute(c.UserContext(), req)
	if err != nil {
		perr := protocol.NewError(err)
		l.Error("Provisioning request failed", zap.String("class", perr.Class), zap.Error(err))
		return c.Status(statusFor(err)).JSON(ErrorResponse{RequestID: req.RequestID, Error: perr})
	}
	l.Info("Provisioning request completed")
	return c.JSON(resp)
}

func (h *Handler) badRequest(c *fiber.Ctx, err error) error {
	logger.WithRayID(h.logger, c).Warn("Rejected provisioning request", zap.Error(err))
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: &protocol.Error{Class: "invalid_request", Message: err.Error()},
	})
}

// HandleChangelogRun processes one batch of change events.
// @Summary Run Change Consumer Once
// @Description Pulls one batch of change events after the checkpoint, reconciles the affected roots and commits.
// @Tags provisioning
// @Produce json
// @Success 200 {object} changelog.Outcome "Batch outcome"
// @Failure 404 {object} ErrorResponse "No consumer configured"
// @Failure 409 {object} ErrorResponse "Consumer busy"
// @Failure 500 {object} changelog.Outcome "Batch failed"
// @Router /provisioning/changelog/run [post]
func (h *Handler) HandleChangelogRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	out, err := h.service.RunChangelog(c.UserContext())
	if err != nil {
		l.Error("Change consumer run failed", zap.Error(err))
		if out != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(out)
		}
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: protocol.NewError(err)})
	}
	if out == nil {
		return c.JSON(fiber.Map{"state": "drained"})
	}
	return c.JSON(out)
}

// HandleCheckpoint returns the committed checkpoint.
// @Summary Get Consumer Checkpoint
// @Description Returns the last committed change log checkpoint.
// @Tags provisioning
// @Produce json
// @Success 200 {object} provision.Checkpoint "Checkpoint"
// @Failure 404 {object} ErrorResponse "No consumer configured"
// @Router /provisioning/changelog/checkpoint [get]
func (h *Handler) HandleCheckpoint(c *fiber.Ctx) error {
	cp, err := h.service.Checkpoint(c.UserContext())
	if err != nil {
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: protocol.NewError(err)})
	}
	return c.JSON(cp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNoConsumer):
		return fiber.StatusNotFound
	case errors.Is(err, ErrConsumerBusy):
		return fiber.StatusConflict
	}
	switch protocol.Classify(err) {
	case protocol.ClassNotFound:
		return fiber.StatusNotFound
	case protocol.ClassConfiguration:
		return fiber.StatusUnprocessableEntity
	case protocol.ClassTargetUnreachable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
