package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"jan-server/services/chat-api/internal/config"
)

// ContextKeySubject holds the authenticated subject on the gin context.
const ContextKeySubject = "auth_subject"

// Validator guards the conversation routes with JWTs verified against a JWKS
// endpoint. A Validator built with auth disabled lets every request through.
type Validator struct {
	enabled  bool
	issuer   string
	audience string
	log      zerolog.Logger
	keyfunc  jwt.Keyfunc
}

// NewValidator fetches the JWKS when auth is enabled.
func NewValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Validator, error) {
	log = log.With().Str("component", "auth").Logger()
	if !cfg.AuthEnabled {
		log.Info().Msg("Authentication disabled")
		return &Validator{log: log}, nil
	}

	options := keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Msg("jwks refresh error")
		},
	}

	jwks, err := keyfunc.Get(cfg.AuthJWKSURL, options)
	if err != nil {
		return nil, err
	}

	return newValidator(cfg.AuthIssuer, cfg.AuthAudience, jwks.Keyfunc, log), nil
}

func newValidator(issuer, audience string, kf jwt.Keyfunc, log zerolog.Logger) *Validator {
	return &Validator{
		enabled:  true,
		issuer:   issuer,
		audience: audience,
		log:      log,
		keyfunc:  kf,
	}
}

// Subject returns the authenticated subject of the request, or "" when auth is
// disabled or the token carried none.
func Subject(c *gin.Context) string {
	return c.GetString(ContextKeySubject)
}

// Enabled reports whether requests are checked.
func (v *Validator) Enabled() bool {
	return v != nil && v.enabled
}

// Middleware enforces JWT auth when enabled.
func (v *Validator) Middleware() gin.HandlerFunc {
	if !v.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		token, err := jwt.Parse(tokenString, v.keyfunc,
			jwt.WithAudience(v.audience),
			jwt.WithIssuer(v.issuer),
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		)
		if err != nil || !token.Valid {
			v.log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("rejected bearer token")
			abortUnauthorized(c, "invalid token")
			return
		}

		if subject, err := token.Claims.GetSubject(); err == nil && subject != "" {
			c.Set(ContextKeySubject, subject)
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
