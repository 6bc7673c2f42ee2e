package handler

import (
	"log/slog"
	"net/http"

	. "identityapp/internal/adapter/http/helper"
	. "identityapp/internal/adapter/http/validation"
	"identityapp/internal/core/domain"
	"identityapp/internal/core/model/request"
	"identityapp/internal/core/model/response"
	"identityapp/internal/core/port"
	"identityapp/internal/core/util"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc port.IdentityService
}

func NewAuthHandler(svc port.IdentityService) *AuthHandler {
	return &AuthHandler{
		svc: svc,
	}
}

func (a *AuthHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	params, err := util.ParamsToMap[request.RegisterRequest](c)

	if err != nil {
		SendBadRequestError(c, "request", "Invalid request parameters")
		return
	}

	if err := Validator.Struct(params); err != nil {
		SendValidationError(c, err)
		return
	}

	user, err := a.svc.Register(ctx, params)

	if err != nil {
		slog.WarnContext(ctx, "Register", "error", err)
		SendServiceError(c, err)
		return
	}

	SendSuccess(c, http.StatusOK, response.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, "user registered")
}

func (a *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	params, err := util.ParamsToMap[request.LoginRequest](c)

	if err != nil {
		SendBadRequestError(c, "request", "Invalid request parameters")
		return
	}

	if err := Validator.Struct(params); err != nil {
		SendValidationError(c, err)
		return
	}

	result, err := a.svc.Login(ctx, params)

	if err != nil {
		slog.WarnContext(ctx, "Login", "error", err)
		SendServiceError(c, err)
		return
	}

	SendSuccess(c, http.StatusOK, result)
}

func (a *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	token, ok := BearerToken(c)

	if !ok {
		SendUnauthorizedError(c, domain.ErrInvalidToken.Error())
		return
	}

	if err := a.svc.Logout(ctx, token); err != nil {
		SendServiceError(c, err)
		return
	}

	SendSuccess(c, http.StatusOK, nil, "logged out")
}
