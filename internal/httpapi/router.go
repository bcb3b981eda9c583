package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fieldroute/jobsync/internal/config"
	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/ratelimit"
	"github.com/fieldroute/jobsync/internal/repos"
	"github.com/fieldroute/jobsync/internal/retry"
	"github.com/fieldroute/jobsync/internal/usecase"
	"github.com/fieldroute/jobsync/internal/worker"
)

// Deps bundles every collaborator the router needs. app.go builds this
// once during process wiring.
type Deps struct {
	DB         *gorm.DB
	Log        *logger.Logger
	Cfg        config.Config
	Jobs       repos.JobRepo
	Routings   repos.JobRoutingRepo
	CreateJob  *usecase.CreateJob
	Limiter    ratelimit.Limiter
	Retryer    *retry.Executor
	Supervisor *worker.Supervisor
}

// NewRouter builds the gin.Engine with every route and middleware wired,
// grounded on the teacher's router.go ordering: recovery first, then
// logging, then CORS, then per-route rate limiting.
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(recovery(d.Log), requestLogger(d.Log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/health", healthHandler())
	r.GET("/ready", readyHandler(d.DB))

	jobs := r.Group("/jobs")
	{
		jobs.POST("", rateLimitMiddleware(d.Limiter, "create_job", d.Cfg.RateLimitCompanySyncPerMinute, time.Minute), createJobHandler(d.CreateJob))
		jobs.GET("", listJobsHandler(d.DB, d.Jobs))
		jobs.GET("/:id", getJobHandler(d.DB, d.Jobs, d.Routings))
		jobs.GET("/:id/routings", listRoutingsForJobHandler(d.DB, d.Routings))
	}

	admin := r.Group("/admin")
	{
		admin.GET("/workers", adminWorkerHealthHandler(func() map[string]WorkerHealthView {
			out := make(map[string]WorkerHealthView)
			for name, h := range d.Supervisor.Health() {
				out[name] = WorkerHealthView{Running: h.Running, Ticks: h.Ticks, LastTick: h.LastTick.Format(time.RFC3339)}
			}
			return out
		}))
		admin.GET("/circuits/:operation_key", adminCircuitStateHandler(d.Retryer.CircuitState))
	}

	return r
}
