package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
	"github.com/kinokawa/feedsync/internal/present/rest/presenter"
	"github.com/kinokawa/feedsync/internal/service"
	"github.com/kinokawa/feedsync/internal/usecase"
)

type Handler struct {
	sources   *usecase.SourceUsecase
	sync      *usecase.SyncUsecase
	aggregate *usecase.AggregateUsecase
	unified   *usecase.UnifiedFeedUsecase
	notify    *service.NotifyService
}

func NewHandler(
	sources *usecase.SourceUsecase,
	sync *usecase.SyncUsecase,
	aggregate *usecase.AggregateUsecase,
	unified *usecase.UnifiedFeedUsecase,
	notify *service.NotifyService,
) *Handler {
	return &Handler{
		sources:   sources,
		sync:      sync,
		aggregate: aggregate,
		unified:   unified,
		notify:    notify,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/feed", h.handleFeed)
	e.GET("/api/v1/feed/search", h.handleSearch)
	e.GET("/api/v1/feed/trending", h.handleTrending)
	e.GET("/api/v1/feed/personalized", h.handlePersonalized)
	e.GET("/api/v1/feed/metrics", h.handleMetrics)

	e.POST("/api/v1/sources", h.handleSourceCreate)
	e.GET("/api/v1/sources", h.handleSourceList)
	e.GET("/api/v1/sources/:id", h.handleSourceGet)
	e.PUT("/api/v1/sources/:id", h.handleSourceUpdate)
	e.DELETE("/api/v1/sources/:id", h.handleSourceDelete)
	e.PUT("/api/v1/sources/:id/credentials", h.handleSourceCredentials)
	e.GET("/api/v1/sources/:id/rate-limit", h.handleSourceRateLimit)
	e.POST("/api/v1/sources/:id/sync", h.handleSyncOne)
	e.POST("/api/v1/sync", h.handleSyncAll)

	e.POST("/api/v1/feeds", h.handleUnifiedCreate)
	e.GET("/api/v1/feeds", h.handleUnifiedList)
	e.GET("/api/v1/feeds/default", h.handleUnifiedDefault)
	e.GET("/api/v1/feeds/:id", h.handleUnifiedGet)
	e.PUT("/api/v1/feeds/:id", h.handleUnifiedUpdate)
	e.DELETE("/api/v1/feeds/:id", h.handleUnifiedDelete)
	e.GET("/api/v1/feeds/:id/items", h.handleUnifiedItems)

	e.GET("/realtime", h.handleRealtime)
}

// requester pulls the user id the middleware stored in the context.
func requester(c echo.Context) (string, bool) {
	userID, ok := c.Request().Context().Value(domain.RequesterIdCtxKey).(string)
	return userID, ok && userID != ""
}

// fail maps domain error classes onto HTTP responses.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConfiguration):
		return presenter.BadRequest(c, err)
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrCredential):
		return presenter.Unauthorized(c, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		return presenter.TooManyRequests(c, err)
	default:
		return presenter.InternalError(c, err)
	}
}

func (h *Handler) handleFeed(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	q, err := parseFeedQuery(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	page, err := h.aggregate.GetFeed(ctx, userID, q)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleSearch(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	q, err := parseFeedQuery(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	page, err := h.aggregate.SearchFeed(ctx, userID, c.QueryParam("q"), q)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleTrending(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	timeframe := c.QueryParam("timeframe")
	if timeframe == "" {
		timeframe = "24h"
	}
	limit, offset, err := parsePagination(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	page, err := h.aggregate.GetTrending(ctx, userID, timeframe, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handlePersonalized(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	page, err := h.aggregate.GetPersonalized(ctx, userID, limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, page)
}

func (h *Handler) handleMetrics(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	metrics, err := h.aggregate.GetMetrics(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, metrics)
}

type sourceRequest struct {
	PlatformID    string               `json:"platformId"`
	AccountHandle string               `json:"accountHandle"`
	AccountID     string               `json:"accountId"`
	Name          string               `json:"name"`
	Status        string               `json:"status"`
	Credentials   feedsync.Credentials `json:"credentials"`
	SyncSettings  domain.SyncSettings  `json:"syncSettings"`
}

func (h *Handler) handleSourceCreate(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	var req sourceRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	source, err := h.sources.Create(ctx, domain.Source{
		UserID:        userID,
		PlatformID:    req.PlatformID,
		AccountHandle: req.AccountHandle,
		AccountID:     req.AccountID,
		Name:          req.Name,
		Credentials:   req.Credentials,
		SyncSettings:  req.SyncSettings,
	})
	if err != nil {
		return fail(c, err)
	}
	return presenter.Created(c, source)
}

func (h *Handler) handleSourceList(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	sources, err := h.sources.List(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, sources)
}

func (h *Handler) handleSourceGet(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	source, err := h.sources.Get(ctx, userID, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, source)
}

func (h *Handler) handleSourceUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	var req sourceRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	source, err := h.sources.Update(ctx, userID, domain.Source{
		ID:           c.Param("id"),
		Name:         req.Name,
		Status:       domain.SourceStatus(req.Status),
		SyncSettings: req.SyncSettings,
	})
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, source)
}

func (h *Handler) handleSourceDelete(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	if err := h.sources.Delete(ctx, userID, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleSourceCredentials(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	var creds feedsync.Credentials
	if err := c.Bind(&creds); err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.sources.UpdateCredentials(ctx, userID, c.Param("id"), creds); err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleSourceRateLimit(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	status, err := h.sources.RateLimit(ctx, userID, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, status)
}

func (h *Handler) handleSyncOne(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	// Ownership check before touching the orchestrator.
	if _, err := h.sources.Get(ctx, userID, c.Param("id")); err != nil {
		return fail(c, err)
	}

	var overrides *domain.SyncOverrides
	if c.Request().ContentLength > 0 {
		var body domain.SyncOverrides
		if err := c.Bind(&body); err != nil {
			return presenter.BadRequest(c, err)
		}
		overrides = &body
	}

	result := h.sync.SyncOne(ctx, c.Param("id"), overrides)
	return presenter.OK(c, result)
}

func (h *Handler) handleSyncAll(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	results, err := h.sync.SyncAll(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, results)
}

type unifiedFeedRequest struct {
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	SourceIDs      []string            `json:"sourceIds"`
	FilterSettings domain.ItemFilters  `json:"filterSettings"`
	SortSettings   domain.SortSettings `json:"sortSettings"`
	IsDefault      bool                `json:"isDefault"`
}

func (h *Handler) handleUnifiedCreate(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	var req unifiedFeedRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	feed, err := h.unified.Create(ctx, domain.UnifiedFeed{
		UserID:         userID,
		Name:           req.Name,
		Description:    req.Description,
		SourceIDs:      req.SourceIDs,
		FilterSettings: req.FilterSettings,
		SortSettings:   req.SortSettings,
		IsDefault:      req.IsDefault,
	})
	if err != nil {
		return fail(c, err)
	}
	return presenter.Created(c, feed)
}

func (h *Handler) handleUnifiedList(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	feeds, err := h.unified.List(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, feeds)
}

func (h *Handler) handleUnifiedDefault(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	feed, err := h.unified.Default(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, feed)
}

func (h *Handler) handleUnifiedGet(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	feed, err := h.unified.Get(ctx, userID, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, feed)
}

func (h *Handler) handleUnifiedUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	var req unifiedFeedRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	feed, err := h.unified.Update(ctx, userID, domain.UnifiedFeed{
		ID:             c.Param("id"),
		UserID:         userID,
		Name:           req.Name,
		Description:    req.Description,
		SourceIDs:      req.SourceIDs,
		FilterSettings: req.FilterSettings,
		SortSettings:   req.SortSettings,
		IsDefault:      req.IsDefault,
	})
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, feed)
}

func (h *Handler) handleUnifiedDelete(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	if err := h.unified.Delete(ctx, userID, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleUnifiedItems(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	limit, offset, err := parsePagination(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	page, err := h.unified.Items(ctx, userID, c.Param("id"), limit, offset)
	if err != nil {
		return fail(c, err)
	}
	return presenter.OK(c, page)
}

func parsePagination(c echo.Context) (limit, offset int, err error) {
	limitStr := c.QueryParam("limit")
	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, domain.ValidationError{Detail: "invalid limit parameter"}
		}
	}
	offsetStr := c.QueryParam("offset")
	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, domain.ValidationError{Detail: "invalid offset parameter"}
		}
	}
	return limit, offset, nil
}

func parseFeedQuery(c echo.Context) (domain.FeedQuery, error) {
	var q domain.FeedQuery

	limit, offset, err := parsePagination(c)
	if err != nil {
		return q, err
	}
	q.Limit = limit
	q.Offset = offset

	q.Filters.SourceIDs = splitParam(c.QueryParam("sources"))
	q.Filters.Keywords = splitParam(c.QueryParam("keywords"))
	q.Filters.ExcludeKeywords = splitParam(c.QueryParam("exclude"))

	for _, t := range splitParam(c.QueryParam("types")) {
		q.Filters.ItemTypes = append(q.Filters.ItemTypes, feedsync.ItemType(t))
	}

	if fromStr := c.QueryParam("from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return q, domain.ValidationError{Detail: "invalid from parameter"}
		}
		q.Filters.FromDate = &parsed
	}
	if toStr := c.QueryParam("to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return q, domain.ValidationError{Detail: "invalid to parameter"}
		}
		q.Filters.ToDate = &parsed
	}

	if minLikesStr := c.QueryParam("minLikes"); minLikesStr != "" {
		minLikes, err := strconv.ParseInt(minLikesStr, 10, 64)
		if err != nil {
			return q, domain.ValidationError{Detail: "invalid minLikes parameter"}
		}
		q.Filters.MinLikes = &minLikes
	}
	if minSharesStr := c.QueryParam("minShares"); minSharesStr != "" {
		minShares, err := strconv.ParseInt(minSharesStr, 10, 64)
		if err != nil {
			return q, domain.ValidationError{Detail: "invalid minShares parameter"}
		}
		q.Filters.MinShares = &minShares
	}

	sortBy := c.QueryParam("sortBy")
	if sortBy != "" {
		switch field := domain.SortField(sortBy); field {
		case domain.SortByPublishedAt, domain.SortByLikes, domain.SortByShares, domain.SortByCreatedAt:
			q.Sort.Field = field
		default:
			return q, domain.ValidationError{Detail: "invalid sortBy parameter"}
		}
	}
	sortOrder := c.QueryParam("sortOrder")
	if sortOrder != "" {
		switch order := domain.SortOrder(sortOrder); order {
		case domain.SortAsc, domain.SortDesc:
			q.Sort.Order = order
		default:
			return q, domain.ValidationError{Detail: "invalid sortOrder parameter"}
		}
	}

	return q, nil
}

func splitParam(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type string `json:"type"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	userID, ok := requester(c)
	if !ok {
		return presenter.Unauthorized(c, "X-User-ID header is required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	// The relay owns output and exits when input closes; closing output
	// here would race its in-flight sends.
	input := make(chan []string)
	defer close(input)
	output := make(chan feedsync.Event)

	go h.notify.Realtime(ctx, input, output)

	input <- []string{userID}

	quit := make(chan struct{}, 1)

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
