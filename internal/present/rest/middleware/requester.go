package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kinokawa/feedsync/internal/domain"
)

var tracer = otel.Tracer("requester")

// RequesterMiddleware lifts the caller's user id out of the request
// header into the context. Authentication itself happens upstream;
// this layer only trusts and propagates the id.
type RequesterMiddleware struct{}

func NewRequesterMiddleware() *RequesterMiddleware {
	return &RequesterMiddleware{}
}

func (m *RequesterMiddleware) IdentifyRequester(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Requester.Middleware.IdentifyRequester")
		defer span.End()

		userID := c.Request().Header.Get(domain.RequesterIdHeader)
		if userID != "" {
			ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, userID)
			span.SetAttributes(attribute.String("RequesterId", userID))
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
