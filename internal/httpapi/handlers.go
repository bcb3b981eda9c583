package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/domain"
	"github.com/fieldroute/jobsync/internal/pkg/dbctx"
	pkgerrors "github.com/fieldroute/jobsync/internal/pkg/errors"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/usecase"
)

// createJobRequest is the wire shape of a POST /jobs body.
type createJobRequest struct {
	Summary               string                       `json:"summary" binding:"required"`
	Street                string                       `json:"street" binding:"required"`
	City                  string                       `json:"city"`
	State                 string                       `json:"state"`
	ZipCode               string                       `json:"zip_code"`
	HomeownerName         string                       `json:"homeowner_name" binding:"required"`
	HomeownerPhone        string                       `json:"homeowner_phone"`
	HomeownerEmail        string                       `json:"homeowner_email"`
	CreatedByCompanyID    uuid.UUID                    `json:"created_by_company_id" binding:"required"`
	CreatedByTechnicianID uuid.UUID                    `json:"created_by_technician_id" binding:"required"`
	RequiredSkills        []string                     `json:"required_skills"`
	SkillLevels           map[string]domain.SkillLevel `json:"skill_levels"`
	Category              string                       `json:"category"`
}

// createJobResponse is the wire shape of a successful POST /jobs result.
type createJobResponse struct {
	JobID             uuid.UUID   `json:"job_id"`
	RoutingIDs        []uuid.UUID `json:"routing_ids"`
	AverageMatchScore float64     `json:"average_match_score"`
}

func createJobHandler(createJob *usecase.CreateJob) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}

		result, err := createJob.Execute(c.Request.Context(), usecase.CreateJobRequest{
			Summary:               req.Summary,
			Street:                req.Street,
			City:                  req.City,
			State:                 req.State,
			ZipCode:               req.ZipCode,
			HomeownerName:         req.HomeownerName,
			HomeownerPhone:        req.HomeownerPhone,
			HomeownerEmail:        req.HomeownerEmail,
			CreatedByCompanyID:    req.CreatedByCompanyID,
			CreatedByTechnicianID: req.CreatedByTechnicianID,
			RequiredSkills:        req.RequiredSkills,
			SkillLevels:           req.SkillLevels,
			Category:              req.Category,
		})
		if err != nil {
			writeUseCaseError(c, err)
			return
		}

		routingIDs := make([]uuid.UUID, 0, len(result.Routings))
		for _, r := range result.Routings {
			routingIDs = append(routingIDs, r.ID)
		}
		ok(c, http.StatusCreated, createJobResponse{
			JobID:             result.Job.ID,
			RoutingIDs:        routingIDs,
			AverageMatchScore: result.AverageMatchScore,
		})
	}
}

func getJobHandler(db *gorm.DB, jobs repos.JobRepo, routings repos.JobRoutingRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			fail(c, http.StatusBadRequest, pkgerrors.NewValidationError("invalid job id"))
			return
		}
		dbc := dbctx.Background(db).With(c.Request.Context())

		job, err := jobs.GetByID(dbc, id)
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		if job == nil {
			fail(c, http.StatusNotFound, pkgerrors.ErrNotFound)
			return
		}
		r, err := routings.ListByJobID(dbc, id)
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		ok(c, http.StatusOK, gin.H{"job": job, "routings": r})
	}
}

func listJobsHandler(db *gorm.DB, jobs repos.JobRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		dbc := dbctx.Background(db).With(c.Request.Context())
		out, err := jobs.List(dbc, limit, offset)
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		ok(c, http.StatusOK, out)
	}
}

func listRoutingsForJobHandler(db *gorm.DB, routings repos.JobRoutingRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			fail(c, http.StatusBadRequest, pkgerrors.NewValidationError("invalid job id"))
			return
		}
		dbc := dbctx.Background(db).With(c.Request.Context())
		out, err := routings.ListByJobID(dbc, id)
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		ok(c, http.StatusOK, out)
	}
}

func healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// readyHandler pings the database directly so a load balancer can tell a
// process with a dead DB connection apart from one that's merely busy.
func readyHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			fail(c, http.StatusServiceUnavailable, err)
			return
		}
		ok(c, http.StatusOK, gin.H{"status": "ready"})
	}
}

func adminWorkerHealthHandler(health func() map[string]WorkerHealthView) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, http.StatusOK, health())
	}
}

func adminCircuitStateHandler(state func(operationKey string) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("operation_key")
		ok(c, http.StatusOK, gin.H{"operation_key": key, "state": state(key)})
	}
}

// WorkerHealthView is the admin-facing JSON shape of one worker's
// liveness; router.go converts each internal/worker.WorkerHealth into it,
// rendering LastTick as an RFC 3339 string.
type WorkerHealthView struct {
	Running  bool   `json:"running"`
	Ticks    int64  `json:"ticks"`
	LastTick string `json:"last_tick"`
}
