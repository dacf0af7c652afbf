package integrity

import (
	"provisioner/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/structure", h.HandleStructureCheck)
	group.Get("/targets", h.HandleTargetsCheck)
	group.Get("/schema", h.HandleSchemaCheck)
}

// HandleIntegrityCheck runs every check.
// @Summary Run All Integrity Checks
// @Description Checks the object directory structure, pings every target and verifies the registry schema.
// @Tags integrity
// @Produce json
// @Success 200 {object} map[string]interface{} "Combined Report"
// @Router /integrity [get]
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.UserContext()
	report := make(map[string]any)

	if dangling, err := h.service.CheckStructure(ctx); err != nil {
		report["structure"] = fiber.Map{"status": "error", "error": err.Error()}
	} else {
		report["structure"] = fiber.Map{"status": "ok", "dangling": dangling}
	}

	report["targets"] = h.service.CheckTargets(ctx)

	if schema, err := h.service.CheckSchema(); err != nil {
		report["schema"] = fiber.Map{"status": "error", "error": err.Error()}
	} else {
		report["schema"] = schema
	}

	return c.JSON(report)
}

// HandleStructureCheck checks and optionally fixes the object directories.
// @Summary Check Directory Structure
// @Description Lists object directory entries whose parent entry is missing. With fix=true they are removed.
// @Tags integrity
// @Produce json
// @Param fix query boolean false "Remove dangling entries"
// @Success 200 {object} map[string]interface{} "Structure Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/structure [get]
func (h *Handler) HandleStructureCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	dangling, err := h.service.CheckStructure(c.UserContext())
	if err != nil {
		l.Error("Structure check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if len(dangling) > 0 {
		l.Warn("Dangling entries detected", zap.Any("dangling", dangling))

		if fix {
			if err := h.service.FixStructure(c.UserContext(), dangling); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":    "Failed to fix structure",
					"details":  err.Error(),
					"dangling": dangling,
				})
			}
			return c.JSON(fiber.Map{"status": "fixed", "fixed": dangling})
		}
	}

	return c.JSON(fiber.Map{"status": "checked", "dangling": dangling})
}

// HandleTargetsCheck pings every target.
// @Summary Check Targets
// @Description Runs a one-level search of each target base and reports reachability.
// @Tags integrity
// @Produce json
// @Success 200 {array} checks.TargetReport "Target Reports"
// @Failure 503 {array} checks.TargetReport "A target is unreachable"
// @Router /integrity/targets [get]
func (h *Handler) HandleTargetsCheck(c *fiber.Ctx) error {
	reports := h.service.CheckTargets(c.UserContext())
	for _, r := range reports {
		if !r.Reachable {
			logger.WithRayID(h.service.logger, c).Warn("Target unreachable",
				zap.String("target", r.Target),
				zap.String("error", r.Error),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(reports)
		}
	}
	return c.JSON(reports)
}

// HandleSchemaCheck checks the registry schema.
// @Summary Check Registry Schema
// @Description Checks that the registry tables match the source models.
// @Tags integrity
// @Produce json
// @Success 200 {object} source.SchemaReport "Schema Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/schema [get]
func (h *Handler) HandleSchemaCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.CheckSchema()
	if err != nil {
		l.Error("Schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}
