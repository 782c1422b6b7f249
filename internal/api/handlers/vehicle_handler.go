package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pratik860s/Autopart-Backend/internal/services"
)

// VehicleHandler serves the cascading vehicle-selection filters. All routes
// are public: the enquiry form is filled before any account exists.
type VehicleHandler struct {
	vehicleService services.IVehicleService
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(vehicleService services.IVehicleService) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService}
}

// filterFromQuery builds the prefix filter from query parameters. Each level
// of the cascade narrows by everything selected above it.
func filterFromQuery(c *gin.Context) services.VehicleFilter {
	filter := services.VehicleFilter{
		Make:      c.Query("make"),
		Model:     c.Query("model"),
		BodyStyle: c.Query("body_style"),
		Trim:      c.Query("trim"),
		Gearbox:   c.Query("gearbox"),
	}
	if yearStr := c.Query("year"); yearStr != "" {
		if year, err := strconv.Atoi(yearStr); err == nil {
			filter.Year = year
		}
	}
	return filter
}

// GetMakes handles GET /v1/vehicle/makes
func (h *VehicleHandler) GetMakes(c *gin.Context) {
	makes, err := h.vehicleService.GetMakes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"makes": makes})
}

// GetModels handles GET /v1/vehicle/models?make=...
func (h *VehicleHandler) GetModels(c *gin.Context) {
	models, err := h.vehicleService.GetModels(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// GetYears handles GET /v1/vehicle/years?make=...&model=...
func (h *VehicleHandler) GetYears(c *gin.Context) {
	years, err := h.vehicleService.GetYears(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"years": years})
}

// GetBodyStyles handles GET /v1/vehicle/body-styles
func (h *VehicleHandler) GetBodyStyles(c *gin.Context) {
	styles, err := h.vehicleService.GetBodyStyles(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"body_styles": styles})
}

// GetTrims handles GET /v1/vehicle/trims
func (h *VehicleHandler) GetTrims(c *gin.Context) {
	trims, err := h.vehicleService.GetTrims(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trims": trims})
}

// GetGearboxes handles GET /v1/vehicle/gearboxes
func (h *VehicleHandler) GetGearboxes(c *gin.Context) {
	gearboxes, err := h.vehicleService.GetGearboxes(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gearboxes": gearboxes})
}

// GetFuels handles GET /v1/vehicle/fuels
func (h *VehicleHandler) GetFuels(c *gin.Context) {
	fuels, err := h.vehicleService.GetFuels(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fuels": fuels})
}
