package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/finquery/finquery/internal/pkg/errcode"
	"github.com/finquery/finquery/internal/pkg/response"
	"github.com/finquery/finquery/internal/service"
)

type AskHandler struct {
	ask *service.AskService
}

func NewAskHandler(ask *service.AskService) *AskHandler {
	return &AskHandler{ask: ask}
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	payload, err := h.ask.Ask(c.Request.Context(), req.Question)
	if err != nil {
		if errors.Is(err, service.ErrAIUnavailable) {
			response.Error(c, errcode.ErrAIUnavailable, "ai not configured")
			return
		}
		handleError(c, err)
		return
	}
	response.Success(c, payload)
}
