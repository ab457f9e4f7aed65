// Package web provides HTTP handlers and REST API endpoints for workflow authoring.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/certflow/pkg/models"
	"github.com/dukex/certflow/pkg/registry"
	"github.com/dukex/certflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService   *services.Workflow
	designerService   *services.Designer
	publishingService *services.Publishing
	validator         *validator.Validate
	registry          *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	designerService *services.Designer,
	publishingService *services.Publishing,
	validator *validator.Validate,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService:   workflowService,
		designerService:   designerService,
		publishingService: publishingService,
		validator:         validator,
		registry:          registry,
	}
}

// Routes mounts the workflow endpoints on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)

	w.Post("/:id/release", h.ReleaseWorkflow)
	w.Post("/:id/discard", h.DiscardWorkflow)
	w.Post("/:id/switch-enable", h.SwitchEnableWorkflow)
	w.Get("/:id/trigger", h.GetWorkflowTrigger)

	w.Post("/:id/nodes", h.AddWorkflowNode)
	w.Put("/:id/nodes/:nodeId", h.UpdateWorkflowNode)
	w.Delete("/:id/nodes/:nodeId", h.RemoveWorkflowNode)
	w.Post("/:id/nodes/:nodeId/branches", h.AddWorkflowBranch)
	w.Delete("/:id/nodes/:nodeId/branches/:index", h.RemoveWorkflowBranch)
	w.Get("/:id/nodes/:nodeId/outputs", h.GetNodeOutputs)

	router.Get("/action-kinds", h.GetActionKinds)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := h.parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func (h *APIHandlers) parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if enabledStr := c.Query("enabled"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return nil, err
		}

		req.Enabled = &enabled
	}

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Certflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Certflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetActionKinds(c fiber.Ctx) error {
	kinds := h.registry.GetAvailableKinds()
	response := make([]fiber.Map, 0, len(kinds))

	for _, kind := range kinds {
		response = append(response, fiber.Map{
			"id":          kind.ID(),
			"name":        kind.Name(),
			"description": kind.Description(),
			"schema":      kind.Schema(),
			"inputs":      kind.Inputs(),
			"outputs":     kind.Outputs(),
		})
	}

	return c.JSON(response)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), services.CreateWorkflowRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.SetBaseInfo(c.Context(), c.Params("id"), services.UpdateBaseInfoRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ReleaseWorkflow(c fiber.Ctx) error {
	released, err := h.publishingService.Release(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(released)
}

func (h *APIHandlers) DiscardWorkflow(c fiber.Ctx) error {
	discarded, err := h.publishingService.Discard(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(discarded)
}

func (h *APIHandlers) SwitchEnableWorkflow(c fiber.Ctx) error {
	updated, err := h.publishingService.SwitchEnable(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) GetWorkflowTrigger(c fiber.Ctx) error {
	runs := 0

	if runsStr := c.Query("runs"); runsStr != "" {
		parsed, err := strconv.Atoi(runsStr)
		if err != nil {
			return badRequest(c, "runs must be an integer")
		}

		runs = parsed
	}

	preview, err := h.publishingService.PreviewTrigger(c.Context(), c.Params("id"), runs)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(preview)
}

func (h *APIHandlers) AddWorkflowNode(c fiber.Ctx) error {
	var req AddNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.designerService.AddNode(c.Context(), c.Params("id"), req.PreviousNodeID, req.Node)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(updated)
}

func (h *APIHandlers) UpdateWorkflowNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	nodeID := c.Params("nodeId")
	if req.Node.ID != "" && req.Node.ID != nodeID {
		return badRequest(c, "Node ID in body does not match the path")
	}

	req.Node.ID = nodeID

	updated, err := h.designerService.UpdateNode(c.Context(), c.Params("id"), req.Node)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) RemoveWorkflowNode(c fiber.Ctx) error {
	updated, err := h.designerService.RemoveNode(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) AddWorkflowBranch(c fiber.Ctx) error {
	updated, err := h.designerService.AddBranch(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(updated)
}

func (h *APIHandlers) RemoveWorkflowBranch(c fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return badRequest(c, "Branch index must be an integer")
	}

	updated, err := h.designerService.RemoveBranch(c.Context(), c.Params("id"), c.Params("nodeId"), index)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) GetNodeOutputs(c fiber.Ctx) error {
	category := c.Query("category", models.OutputTypeCertificate)

	nodes, err := h.designerService.OutputsBefore(c.Context(), c.Params("id"), c.Params("nodeId"), category)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformOutputNodes(nodes, category))
}
