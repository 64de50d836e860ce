package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxActorKey = "actorID"

// Auth maps bearer tokens to actor ids. Tokens come from configuration;
// there is no session state.
type Auth struct {
	actors map[string]string
}

// NewAuth creates an Auth from a token -> actor id map.
func NewAuth(actors map[string]string) *Auth {
	if actors == nil {
		actors = map[string]string{}
	}
	return &Auth{actors: actors}
}

// Identify resolves the caller from the Authorization header when one is
// present. It never rejects; endpoints that demand an identity chain
// Require after it.
func (a *Auth) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			if actor, ok := a.actors[parts[1]]; ok {
				c.Set(ctxActorKey, actor)
			}
		}
		c.Next()
	}
}

// Require rejects requests that carry no resolved caller identity.
func (a *Auth) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ActorID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		c.Next()
	}
}

// ActorID returns the authenticated caller id, or "" for anonymous
// requests.
func ActorID(c *gin.Context) string {
	return c.GetString(ctxActorKey)
}
