package booking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bookpilot/bookpilot/internal/concurrency"
	"github.com/bookpilot/bookpilot/internal/pool"
)

func RegisterRoutes(rg *gin.RouterGroup, svc *Service, store *Store) {
	rg.GET("/availability", getAvailability(svc))
	rg.POST("/bookings", createBooking(svc))
	rg.GET("/bookings", listBookings(store))
}

func getAvailability(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := AvailabilityRequest{
			Email: c.Query("email"),
			Date:  c.Query("date"),
		}

		result, err := svc.Availability(c.Request.Context(), req)
		if err != nil {
			status, body := errorResponse(err)
			c.JSON(status, body)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func createBooking(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		conf, err := svc.Book(c.Request.Context(), req)
		if err != nil {
			status, body := errorResponse(err)
			c.JSON(status, body)
			return
		}

		c.JSON(http.StatusCreated, conf)
	}
}

func listBookings(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "booking records not configured"})
			return
		}

		var status *RecordStatus
		if v := c.Query("status"); v != "" {
			s := RecordStatus(v)
			status = &s
		}

		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		records, err := store.ListRecords(c.Request.Context(), status, offset, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"records": records, "total": len(records)})
	}
}

// errorResponse maps the core error taxonomy onto HTTP statuses, passing
// the load counts through so clients can shape their retry policy.
func errorResponse(err error) (int, gin.H) {
	var queueFull *concurrency.QueueFullError
	if errors.As(err, &queueFull) {
		return http.StatusTooManyRequests, gin.H{
			"error":      err.Error(),
			"active":     queueFull.Active,
			"queued":     queueFull.Queued,
			"queue_size": queueFull.QueueSize,
		}
	}

	var timeout *concurrency.TimeoutError
	if errors.As(err, &timeout) {
		return http.StatusGatewayTimeout, gin.H{"error": err.Error()}
	}

	var launch *pool.LaunchError
	if errors.As(err, &launch) {
		return http.StatusServiceUnavailable, gin.H{"error": err.Error(), "attempts": launch.Attempts}
	}

	var sessionCreate *pool.SessionCreationError
	if errors.As(err, &sessionCreate) {
		return http.StatusServiceUnavailable, gin.H{"error": err.Error(), "attempts": sessionCreate.Attempts}
	}

	return http.StatusInternalServerError, gin.H{"error": err.Error()}
}
