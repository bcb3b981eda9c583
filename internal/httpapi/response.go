// Package httpapi is the gin-gonic HTTP surface (C18): job creation,
// read endpoints for jobs/routings, and the admin/health surface (C19).
//
// Grounded on the teacher's internal/httpapi package: a gin.Engine built
// once in router.go, a uniform JSON envelope in response.go, and
// middleware ordered recovery -> logging -> cors -> rate limit.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/fieldroute/jobsync/internal/pkg/errors"
)

// envelope is the uniform response shape every handler writes.
type envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{Data: data})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, envelope{Error: err.Error()})
}

// writeUseCaseError classifies a use case's returned error into an HTTP
// status the way §7 describes: validation -> 400, sync-status -> 409,
// provider-not-configured -> 502, anything unclassified -> 500.
func writeUseCaseError(c *gin.Context, err error) {
	switch e := err.(type) {
	case *pkgerrors.ValidationError:
		fail(c, http.StatusBadRequest, e)
	case *pkgerrors.SyncStatusError:
		fail(c, http.StatusConflict, e)
	case *pkgerrors.ProviderError:
		if e.Kind == pkgerrors.ProviderNotConfigured {
			fail(c, http.StatusBadGateway, e)
			return
		}
		fail(c, http.StatusBadGateway, e)
	default:
		fail(c, http.StatusInternalServerError, err)
	}
}
