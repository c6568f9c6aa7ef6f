package handler

import (
	"net/http"
	"time"

	"instapilot/internal/services"
	"instapilot/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AccountHandler struct {
	service *services.AccountService
}

func NewAccountHandler(service *services.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

func (h *AccountHandler) Connect(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, nil, http.StatusUnauthorized)
		return
	}

	var req httpdto.ConnectAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	acct, err := h.service.Connect(c.Request.Context(), services.ConnectAccountInput{
		UserID:            userID,
		ExternalAccountID: req.ExternalAccountID,
		Username:          req.Username,
		AccessToken:       req.AccessToken,
		TokenExpiresIn:    time.Duration(req.ExpiresIn) * time.Second,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.NewAccountResponse(acct)))
}

func (h *AccountHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, nil, http.StatusUnauthorized)
		return
	}

	accounts, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewAccountListResponse(accounts)))
}

func (h *AccountHandler) Get(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, nil, http.StatusUnauthorized)
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid account id", "INVALID_REQUEST"))
		return
	}

	acct, err := h.service.Get(c.Request.Context(), userID, accountID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewAccountResponse(acct)))
}

func (h *AccountHandler) Disconnect(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		writeError(c, nil, http.StatusUnauthorized)
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid account id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.Disconnect(c.Request.Context(), userID, accountID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
