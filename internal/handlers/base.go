package handlers

import (
	"errors"
	"net/http"

	"threadspire/internal/middleware"
	"threadspire/internal/services"

	"github.com/gin-gonic/gin"
)

// Render injects the values every page needs before rendering name.
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}
	if id, ok := c.Get(middleware.CurrentUserKey); ok {
		obj["CurrentUser"] = id
	}
	obj["CurrentPath"] = c.Request.URL.Path
	c.HTML(code, name, obj)
}

func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message})
}

// StatusOf maps a service error to an HTTP status and a stable error code.
func StatusOf(err error) (int, string) {
	var (
		ve *services.ValidationError
		pe *services.PermissionError
		pa *services.PrivateAccessError
		nf *services.NotFoundError
		ce *services.ConflictError
		pf *services.PartialFailureError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_failed"
	case errors.As(err, &pe):
		if pe.Unauthenticated {
			return http.StatusUnauthorized, "unauthenticated"
		}
		return http.StatusForbidden, "forbidden"
	case errors.As(err, &pa):
		return http.StatusForbidden, "private"
	case errors.As(err, &nf):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &ce):
		return http.StatusConflict, "conflict"
	case errors.As(err, &pf):
		return http.StatusInternalServerError, "partial_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// Fail writes err as a JSON error body. Server errors are attached to the
// context for the request logger and their details are not exposed.
func Fail(c *gin.Context, err error) {
	status, code := StatusOf(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if code == "internal" {
			message = "internal server error"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "bad_request", "message": message}})
}

// bindJSON decodes the body into v and answers 400 on failure.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// segmentParam reads the optional segment_id query parameter.
func segmentParam(c *gin.Context) *string {
	if id := c.Query("segment_id"); id != "" {
		return &id
	}
	return nil
}
