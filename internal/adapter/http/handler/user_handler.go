package handler

import (
	"log/slog"
	"net/http"

	. "identityapp/internal/adapter/http/helper"
	. "identityapp/internal/adapter/http/validation"
	"identityapp/internal/core/model/request"
	"identityapp/internal/core/model/response"
	"identityapp/internal/core/port"
	"identityapp/internal/core/util"

	"github.com/gin-gonic/gin"
)

const photoField = "photo"

type UserHandler struct {
	svc port.IdentityService
}

func NewUserHandler(svc port.IdentityService) *UserHandler {
	return &UserHandler{
		svc: svc,
	}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	ctx := c.Request.Context()

	profile, err := h.svc.GetProfile(ctx, c.Param("id"))

	if err != nil {
		SendServiceError(c, err)
		return
	}

	SendSuccess(c, http.StatusOK, response.ProfileResponse{
		Name:        profile.Name,
		Username:    profile.Username,
		Email:       profile.Email,
		CreatedAt:   profile.CreatedAt,
		PhotoURL:    profile.PhotoURL,
		PhoneNumber: profile.PhoneNumber,
	})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()

	params, err := util.ParamsToMap[request.UpdateProfileRequest](c)

	if err != nil {
		SendBadRequestError(c, "request", "Invalid request parameters")
		return
	}

	if err := Validator.Struct(params); err != nil {
		SendValidationError(c, err)
		return
	}

	if err := h.svc.UpdateProfile(ctx, c.Param("id"), params); err != nil {
		slog.WarnContext(ctx, "UpdateProfile", "user_id", c.Param("id"), "error", err)
		SendServiceError(c, err)
		return
	}

	SendSuccess(c, http.StatusOK, nil, "profile updated")
}

func (h *UserHandler) ReplacePhoto(c *gin.Context) {
	ctx := c.Request.Context()

	header, err := c.FormFile(photoField)

	if err != nil {
		SendBadRequestError(c, photoField, "photo file is required")
		return
	}

	if c.Request.MultipartForm != nil {
		defer c.Request.MultipartForm.RemoveAll()
	}

	file, err := header.Open()

	if err != nil {
		slog.ErrorContext(ctx, "ReplacePhoto", "open_upload", err)
		SendInternalError(c, "could not read upload")
		return
	}
	defer file.Close()

	url, err := h.svc.ReplacePhoto(ctx, c.Param("id"), request.PhotoUpload{
		Content:     file,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})

	if err != nil {
		slog.WarnContext(ctx, "ReplacePhoto", "user_id", c.Param("id"), "error", err)
		SendServiceError(c, err)
		return
	}

	SendSuccess(c, http.StatusOK, response.PhotoResponse{PhotoURL: url})
}
