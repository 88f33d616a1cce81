package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/umi-schedule-api/internal/middleware"
	"github.com/noah-isme/umi-schedule-api/internal/models"
	appErrors "github.com/noah-isme/umi-schedule-api/pkg/errors"
	"github.com/noah-isme/umi-schedule-api/pkg/response"
)

// actorFromContext writes a 401 and returns false when no claims are present.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func notConfigured(c *gin.Context, name string) {
	response.Error(c, appErrors.Clone(appErrors.ErrInternal, name+" service not configured"))
}
