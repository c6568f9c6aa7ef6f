package handler

import (
	"net/http"

	"instapilot/internal/domain/automation"
	"instapilot/internal/services"
	"instapilot/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AutomationHandler struct {
	service *services.AutomationService
}

func NewAutomationHandler(service *services.AutomationService) *AutomationHandler {
	return &AutomationHandler{service: service}
}

func (h *AutomationHandler) Create(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, nil, http.StatusUnauthorized)
		return
	}

	var req httpdto.CreateAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid account id", "INVALID_REQUEST"))
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule, err := h.service.Create(c.Request.Context(), services.CreateAutomationInput{
		UserID:          userID,
		Tier:            services.TierFromContext(c.Request.Context()),
		AccountID:       accountID,
		Kind:            automation.Kind(req.Kind),
		Enabled:         enabled,
		TriggerKeywords: req.TriggerKeywords,
		Template:        req.Template,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.NewAutomationResponse(rule)))
}

func (h *AutomationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, nil, http.StatusUnauthorized)
		return
	}

	rules, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewAutomationListResponse(rules)))
}

func (h *AutomationHandler) Get(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, nil, http.StatusUnauthorized)
		return
	}

	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid automation id", "INVALID_REQUEST"))
		return
	}

	rule, err := h.service.Get(c.Request.Context(), userID, ruleID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewAutomationResponse(rule)))
}

func (h *AutomationHandler) Update(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, nil, http.StatusUnauthorized)
		return
	}

	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid automation id", "INVALID_REQUEST"))
		return
	}

	var req httpdto.UpdateAutomationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	rule, err := h.service.Update(c.Request.Context(), services.UpdateAutomationInput{
		UserID:          userID,
		RuleID:          ruleID,
		Enabled:         req.Enabled,
		TriggerKeywords: req.TriggerKeywords,
		Template:        req.Template,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewAutomationResponse(rule)))
}

func (h *AutomationHandler) Delete(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, nil, http.StatusUnauthorized)
		return
	}

	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid automation id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, ruleID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
