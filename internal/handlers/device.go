package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"smart_irrigation/internal/models"
	"smart_irrigation/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errGetLatest   = "failed to load latest data"
	errGetHistory  = "failed to load history"
	errGetWeather  = "failed to load weather"
	errSendCommand = "failed to send command"
	errSinceBad    = "invalid 'since' time; use RFC3339 or YYYY-MM-DD"
	errLimitBad    = "invalid 'limit'; use a positive integer"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"message": userMsg})
}

// SendCommandRequest is an exported model for Swagger docs of the command payload.
type SendCommandRequest struct {
	// Allowed: TURN_PUMP_ON, TURN_PUMP_OFF
	Action string `json:"action" example:"TURN_PUMP_ON"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Latest device snapshot
// @Tags         data
// @Produce      json
// @Success      200  {object}  models.DeviceSnapshot
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/data/latest [get]
// @Security     BearerAuth
func (h *Handler) getLatest(c *gin.Context) {
	snap, err := h.services.Telemetry.Latest(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetLatest, "data_latest_failed", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Sensor history
// @Description  Oldest first. Empty history is an empty array.
// @Tags         data
// @Produce      json
// @Param        since  query   string  false  "Lower bound (RFC3339 or YYYY-MM-DD)"
// @Param        limit  query   int     false  "Maximum entries"
// @Success      200    {array}   models.DeviceSnapshot
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/data/history [get]
// @Security     BearerAuth
func (h *Handler) getHistory(c *gin.Context) {
	var f service.HistoryFilter
	if qs := c.Query("since"); qs != "" {
		since, err := parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": errSinceBad})
			return
		}
		f.Since = since
	}
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": errLimitBad})
			return
		}
		f.Limit = n
	}

	history, err := h.services.Telemetry.History(c.Request.Context(), f)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetHistory, "data_history_failed", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// @Summary      Current weather
// @Tags         weather
// @Produce      json
// @Success      200  {object}  models.WeatherSnapshot
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/weather/latest [get]
// @Security     BearerAuth
func (h *Handler) getWeather(c *gin.Context) {
	w, err := h.services.Weather.Current(c.Request.Context())
	if errors.Is(err, service.ErrWeatherUnavailable) {
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error()})
		return
	}
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetWeather, "weather_latest_failed", err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// @Summary      Send pump command
// @Description  Rejected with 409 while the pump cools down or is already in the requested state.
// @Tags         command
// @Accept       json
// @Produce      json
// @Param        body  body      SendCommandRequest  true  "Command payload"
// @Success      200   {object}  models.CommandResult
// @Failure      400   {object}  models.CommandResult
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  models.CommandResult
// @Failure      500   {object}  models.CommandResult
// @Router       /api/command [post]
// @Security     BearerAuth
func (h *Handler) sendCommand(c *gin.Context) {
	var req models.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.CommandResult{Message: "invalid body: " + err.Error()})
		return
	}

	res, err := h.services.Command.Execute(c.Request.Context(), req.Action)
	var cooling *service.CooldownError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, service.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, res)
	case errors.As(err, &cooling), errors.Is(err, service.ErrPumpUnchanged):
		c.JSON(http.StatusConflict, res)
	default:
		if h.log != nil {
			h.log.Errorw("command_failed", "err", err, "action", req.Action)
		}
		c.JSON(http.StatusInternalServerError, models.CommandResult{Message: errSendCommand})
	}
}
