// Package handler exposes the operational HTTP surface. Command dispatch
// proper lives in the chat gateway; these endpoints cover the same read and
// admin operations for operators and tests. Caller identity arrives in the
// X-User-ID header and is permission-scoped exactly like a chat invocation.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/dto"
	"github.com/tybug/snitchvisbot/internal/indexer"
	"github.com/tybug/snitchvisbot/internal/macro"
	"github.com/tybug/snitchvisbot/internal/parser"
	"github.com/tybug/snitchvisbot/internal/queryargs"
	"github.com/tybug/snitchvisbot/internal/repository"
	"github.com/tybug/snitchvisbot/internal/service"
)

type Handler struct {
	svc    *service.Service
	macros *macro.Engine
	idx    *indexer.Indexer
	repo   repository.Repository
	router *gin.Engine
	log    *zap.Logger
}

func NewHandler(svc *service.Service, macros *macro.Engine, idx *indexer.Indexer, repo repository.Repository, log *zap.Logger) *Handler {
	h := &Handler{
		svc:    svc,
		macros: macros,
		idx:    idx,
		repo:   repo,
		router: gin.Default(),
		log:    log,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)

	guild := h.router.Group("/guilds/:guild")
	guild.GET("/events", h.queryEvents)
	guild.GET("/snitches", h.listSnitches)
	guild.GET("/channels", h.listChannels)
	guild.POST("/index", h.index)
	guild.POST("/reindex", h.reindex)
	guild.POST("/commands", h.defineCommand)
	guild.DELETE("/commands/:name", h.removeCommand)
	guild.PUT("/template", h.setTemplate)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	if err := h.repo.Ping(c.Request.Context()); err != nil {
		h.log.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// queryEvents handles GET /guilds/:guild/events
func (h *Handler) queryEvents(c *gin.Context) {
	guildID, userID, ok := h.callerScope(c)
	if !ok {
		return
	}

	args := queryargs.Args{
		Past:   c.Query("past"),
		Start:  c.Query("start"),
		End:    c.Query("end"),
		Users:  c.QueryArray("user"),
		Groups: c.QueryArray("group"),
	}

	events, err := h.svc.QueryEvents(c.Request.Context(), guildID, userID, args)
	if err != nil {
		h.renderError(c, err)
		return
	}

	resp := dto.QueryEventsResponse{Count: len(events), Events: make([]dto.EventData, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, dto.EventData{
			SnitchID:  ev.SnitchID,
			MessageID: ev.MessageID,
			Username:  ev.Username,
			Action:    ev.Action,
			Timestamp: ev.Timestamp,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// listSnitches handles GET /guilds/:guild/snitches
func (h *Handler) listSnitches(c *gin.Context) {
	guildID, userID, ok := h.callerScope(c)
	if !ok {
		return
	}

	snitches, err := h.svc.ListSnitches(c.Request.Context(), guildID, userID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	resp := dto.ListSnitchesResponse{Count: len(snitches), Snitches: make([]dto.SnitchData, 0, len(snitches))}
	for _, s := range snitches {
		resp.Snitches = append(resp.Snitches, dto.SnitchData{
			ID: s.ID, World: s.World, X: s.X, Y: s.Y, Z: s.Z,
			Name: s.Name, Group: s.Group,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// listChannels handles GET /guilds/:guild/channels
func (h *Handler) listChannels(c *gin.Context) {
	guildID, ok := h.guildID(c)
	if !ok {
		return
	}

	channels, err := h.svc.ListChannels(c.Request.Context(), guildID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	resp := dto.ListChannelsResponse{Count: len(channels), Channels: make([]dto.ChannelData, 0, len(channels))}
	for _, ch := range channels {
		resp.Channels = append(resp.Channels, dto.ChannelData{
			ChannelID:     ch.ID,
			LastIndexedID: ch.LastIndexedID,
			Everyone:      ch.Everyone,
			RoleIDs:       ch.RoleIDs,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// index handles POST /guilds/:guild/index
func (h *Handler) index(c *gin.Context) {
	guildID, ok := h.guildID(c)
	if !ok {
		return
	}

	job, err := h.idx.Index(c.Request.Context(), guildID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.IndexJobResponse{
		JobID:  job.ID,
		Kind:   job.Kind.String(),
		Status: "running",
	})
}

// reindex handles POST /guilds/:guild/reindex
func (h *Handler) reindex(c *gin.Context) {
	guildID, ok := h.guildID(c)
	if !ok {
		return
	}

	var req dto.ReindexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	job, err := h.idx.FullReindex(c.Request.Context(), guildID, req.Confirm)
	if errors.Is(err, domain.ErrConfirmationRequired) {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   "confirmation_required",
			Message: "full reindex deletes all indexed data; resend with confirm=true",
		})
		return
	}
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.IndexJobResponse{
		JobID:  job.ID,
		Kind:   job.Kind.String(),
		Status: "running",
	})
}

// defineCommand handles POST /guilds/:guild/commands
func (h *Handler) defineCommand(c *gin.Context) {
	guildID, ok := h.guildID(c)
	if !ok {
		return
	}

	var req dto.DefineCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	if err := h.macros.Define(c.Request.Context(), guildID, req.Name, req.BaseCommand, req.Args); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

// removeCommand handles DELETE /guilds/:guild/commands/:name
func (h *Handler) removeCommand(c *gin.Context) {
	guildID, ok := h.guildID(c)
	if !ok {
		return
	}

	if err := h.macros.Remove(c.Request.Context(), guildID, c.Param("name")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// setTemplate handles PUT /guilds/:guild/template
func (h *Handler) setTemplate(c *gin.Context) {
	guildID, ok := h.guildID(c)
	if !ok {
		return
	}

	var req dto.SetTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	tokens, err := parser.CompileTemplate(req.Sample)
	if err != nil {
		h.renderError(c, err)
		return
	}

	err = h.repo.SaveTemplate(c.Request.Context(), domain.Template{
		GuildID: guildID,
		Sample:  req.Sample,
		Tokens:  tokens,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *Handler) guildID(c *gin.Context) (int64, bool) {
	guildID, err := strconv.ParseInt(c.Param("guild"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "invalid guild id",
		})
		return 0, false
	}
	return guildID, true
}

func (h *Handler) callerScope(c *gin.Context) (guildID, userID int64, ok bool) {
	guildID, ok = h.guildID(c)
	if !ok {
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "missing or invalid X-User-ID header",
		})
		return 0, 0, false
	}
	return guildID, userID, true
}

func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: "no matching data",
		})
	default:
		h.log.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: "internal error",
		})
	}
}
