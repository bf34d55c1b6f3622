package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/bookpilot/bookpilot/internal/booking"
	"github.com/bookpilot/bookpilot/internal/concurrency"
	"github.com/bookpilot/bookpilot/internal/db"
	"github.com/bookpilot/bookpilot/internal/pool"
	"github.com/bookpilot/bookpilot/internal/registry"
)

// Deps carries the shared components, constructed once at process start
// and passed explicitly rather than hidden behind globals.
type Deps struct {
	DB       *db.DB
	Manager  *concurrency.Manager
	Pool     *pool.Pool
	Registry *registry.Registry
	Booking  *booking.Service
	Store    *booking.Store
	RedisOpt asynq.RedisClientOpt
}

func New(deps Deps) *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			sqlDB, _ := deps.DB.DB.DB()
			if err := sqlDB.Ping(); err != nil {
				c.JSON(503, gin.H{"status": "unhealthy", "database": "down", "error": err.Error()})
				return
			}
		}

		if deps.RedisOpt.Addr != "" {
			inspector := asynq.NewInspector(deps.RedisOpt)
			if _, err := inspector.Queues(); err != nil {
				c.JSON(503, gin.H{"status": "unhealthy", "redis": "down", "error": err.Error()})
				return
			}
		}

		c.JSON(200, gin.H{
			"status":   "healthy",
			"database": "up",
			"redis":    "up",
		})
	})

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", getStatus(deps))

		booking.RegisterRoutes(v1, deps.Booking, deps.Store)
		registry.RegisterRoutes(v1, deps.Registry)
	}

	return r
}

func getStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"concurrency": deps.Manager.Status(),
			"pool":        deps.Pool.Stats(),
			"sessions":    deps.Registry.Len(),
		})
	}
}
