package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skylark-dev/weather-alerts/internal/aggregator"
)

// AlertService is the aggregation entry point the HTTP layer calls into.
type AlertService interface {
	AlertsByCoords(ctx context.Context, lat, lon float64, lang string) (aggregator.Response, error)
	AlertsByCountry(ctx context.Context, q aggregator.CountryQuery) (aggregator.CountryResponse, error)
}

type Handler struct {
	svc AlertService
}

func NewHandler(svc AlertService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/alerts/coords", h.getAlertsByCoords)
	r.GET("/api/alerts/country", h.getAlertsByCountry)
	r.GET("/health", h.health)
}

func (h *Handler) getAlertsByCoords(c *gin.Context) {
	q, errs := parseCoordsQuery(c)
	if errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query", "fields": errs})
		return
	}

	resp, err := h.svc.AlertsByCoords(c.Request.Context(), q.Lat, q.Lon, q.Lang)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getAlertsByCountry(c *gin.Context) {
	q, errs := parseCountryQuery(c)
	if errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query", "fields": errs})
		return
	}

	resp, err := h.svc.AlertsByCountry(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
