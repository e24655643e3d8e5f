package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	ClinicID string `json:"clinic_id"`
}

type JWTConfig struct {
	Secret []byte
	Issuer string
}

// JWTMiddleware validates the bearer token on every request and places the
// resulting Actor on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.Secret, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			actor, err := actorFromClaims(claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}

			c.Set("user_id", actor.ID.String())
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), actor)))

			return next(c)
		}
	}
}

func actorFromClaims(claims *Claims) (Actor, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, err
	}
	clinicID, err := uuid.Parse(claims.ClinicID)
	if err != nil {
		return Actor{}, err
	}
	role := claims.Role
	if role != RoleAdmin {
		role = RoleUser
	}
	return Actor{ID: userID, Role: role, ClinicID: clinicID}, nil
}

// DevAuthMiddleware is a permissive middleware for development that allows
// unauthenticated requests with a default admin actor.
func DevAuthMiddleware() echo.MiddlewareFunc {
	devActor := Actor{
		ID:       uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		Role:     RoleAdmin,
		ClinicID: uuid.MustParse("00000000-0000-0000-0000-0000000000aa"),
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", devActor.ID.String())
			c.SetRequest(c.Request().WithContext(WithActor(c.Request().Context(), devActor)))
			return next(c)
		}
	}
}

// RequireAdmin rejects requests whose actor does not hold the admin role.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !actor.IsAdmin() {
				return echo.NewHTTPError(http.StatusForbidden, "admin role required")
			}
			return next(c)
		}
	}
}
