package helper

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	. "identityapp/internal/adapter/http/validation"
	"identityapp/internal/core/domain"
	"identityapp/internal/core/model/response"
)

func SendSuccess(c *gin.Context, statusCode int, data any, message ...string) {
	response := response.SuccessResponse{
		Data: data,
	}

	if len(message) > 0 && message[0] != "" {
		response.Message = message[0]
	}

	c.JSON(statusCode, response)
}

func SendError(c *gin.Context, statusCode int, code string, errors []response.ValidationError, details ...any) {
	errorResponse := response.ErrorResponse{
		Error: response.ResponseError{
			Code:   code,
			Errors: errors,
		},
	}

	if len(details) > 0 {
		errorResponse.Error.Details = details[0]
	}

	c.AbortWithStatusJSON(statusCode, errorResponse)
}

func SendValidationError(c *gin.Context, err error) {
	validationErrors := FormatValidationErrors(err)
	SendError(c, http.StatusBadRequest, "VALIDATION_ERROR", validationErrors)
}

func SendInternalError(c *gin.Context, message string, details ...any) {
	SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", fieldError("server", message), details...)
}

func SendUnauthorizedError(c *gin.Context, message string) {
	SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", fieldError("auth", message))
}

func SendForbiddenError(c *gin.Context, message string) {
	SendError(c, http.StatusForbidden, "FORBIDDEN", fieldError("auth", message))
}

func SendBadRequestError(c *gin.Context, field string, message string) {
	SendError(c, http.StatusBadRequest, "BAD_REQUEST", fieldError(field, message))
}

func SendNotFoundError(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, "NOT_FOUND", fieldError("resource", message))
}

// SendServiceError writes the response for an error returned by the identity
// service. Unknown errors become a generic 500.
func SendServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateCredential):
		SendUnauthorizedError(c, err.Error())
	case errors.Is(err, domain.ErrInvalidToken):
		SendUnauthorizedError(c, domain.ErrInvalidToken.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		SendBadRequestError(c, "email", err.Error())
	case errors.Is(err, domain.ErrInvalidAsset):
		SendBadRequestError(c, "photo", domain.ErrInvalidAsset.Error())
	case errors.Is(err, domain.ErrNotFound):
		SendNotFoundError(c, "user not found")
	case errors.Is(err, domain.ErrInvalidCredential):
		SendForbiddenError(c, err.Error())
	case errors.Is(err, domain.ErrAssetDeleteFailed):
		SendInternalError(c, err.Error())
	default:
		SendInternalError(c, domain.ErrCollaboratorUnavailable.Error())
	}
}

func fieldError(field, message string) []response.ValidationError {
	return []response.ValidationError{
		{
			Field:   field,
			Message: message,
		},
	}
}
