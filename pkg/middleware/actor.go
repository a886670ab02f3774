package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/pkg/actor"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
)

// Actor headers forwarded by the gateway after authentication
const (
	HeaderUserID   = "X-WMS-User-ID"
	HeaderUserRole = "X-WMS-User-Role"
	HeaderSiteID   = "X-WMS-Site-ID"
)

// ActorContext copies the forwarded identity headers into the request context.
// Requests without identity carry an empty actor and fail role checks downstream.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actor.Actor{
			UserID: c.GetHeader(HeaderUserID),
			Role:   c.GetHeader(HeaderUserRole),
			SiteID: c.GetHeader(HeaderSiteID),
		}

		ctx := actor.WithActor(c.Request.Context(), a)
		if a.UserID != "" {
			ctx = logging.ContextWithUserID(ctx, a.UserID)
		}
		if a.SiteID != "" {
			ctx = logging.ContextWithSiteID(ctx, a.SiteID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CurrentActor returns the actor attached by ActorContext
func CurrentActor(c *gin.Context) actor.Actor {
	a, _ := actor.FromContext(c.Request.Context())
	return a
}
