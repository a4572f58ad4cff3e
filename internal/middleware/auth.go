package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/spml-provisioner/internal/models"
	appErrors "github.com/noah-isme/spml-provisioner/pkg/errors"
	"github.com/noah-isme/spml-provisioner/pkg/response"
)

// ContextIdentityKey is the gin context key storing the authenticated feed identity.
const ContextIdentityKey = "feedIdentity"

// FeedAuthenticator verifies feed credentials.
type FeedAuthenticator interface {
	AuthenticateBasic(ctx context.Context, login, password string) (models.Identity, error)
	AuthenticateToken(ctx context.Context, token string) (models.Identity, error)
}

// FeedAuth accepts HTTP Basic credentials or a Bearer token and rejects everything else
// with a LoginFailure triple.
func FeedAuth(auth FeedAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.SPMLError(c, "", appErrors.ErrLoginFailure)
			return
		}

		var (
			identity models.Identity
			err      error
		)
		scheme, _, _ := strings.Cut(header, " ")
		switch {
		case strings.EqualFold(scheme, "Bearer"):
			identity, err = auth.AuthenticateToken(c.Request.Context(), strings.TrimSpace(header[len(scheme):]))
		case strings.EqualFold(scheme, "Basic"):
			login, password, ok := c.Request.BasicAuth()
			if !ok {
				err = appErrors.ErrLoginFailure
				break
			}
			identity, err = auth.AuthenticateBasic(c.Request.Context(), login, password)
		default:
			err = appErrors.ErrLoginFailure
		}
		if err != nil {
			response.SPMLError(c, "", err)
			return
		}

		c.Set(ContextIdentityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity FeedAuth stored on the context.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(ContextIdentityKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}
