package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/asistenteai/asistente/adapters/storage/sqlite"
	"github.com/asistenteai/asistente/utils/log"
	"go.uber.org/zap"
)

const jwtExpiry = 24 * time.Hour

type JWTClaims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=2,max=20"`
	Password string `json:"password" validate:"required,min=6"`
}

type adminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// Register creates a web login account.
func (h *Handler) Register(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request data")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to register")
	}
	user, err := h.users.CreateUser(c.Request().Context(), req.Username, hash)
	if err != nil {
		if errors.Is(err, sqlite.ErrUsernameTaken) {
			return echo.NewHTTPError(http.StatusConflict, "username already taken")
		}
		log.WithCtx(c.Request().Context()).Error("creating user", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to register")
	}
	return c.JSON(http.StatusCreated, user)
}

// Login checks credentials and issues a JWT.
func (h *Handler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request data")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.users.GetUserByUsername(c.Request().Context(), req.Username)
	if err != nil || !h.hasher.Compare(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return h.issueToken(c, user.Username, false)
}

// AdminLogin issues an admin JWT against the configured admin password. An
// empty configured password disables admin access entirely.
func (h *Handler) AdminLogin(c echo.Context) error {
	var req adminLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request data")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	adminPassword := h.settings.Current().AdminPassword
	if adminPassword == "" || req.Password != adminPassword {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return h.issueToken(c, "admin", true)
}

func (h *Handler) issueToken(c echo.Context, username string, admin bool) error {
	claims := &JWTClaims{
		Username: username,
		Admin:    admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(jwtExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "asistente",
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("signing jwt", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token": tokenString,
		"type":  "Bearer",
	})
}

// JWTMiddleware authenticates any logged-in user.
func (h *Handler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return h.jwtMiddleware(next, false)
}

// AdminJWTMiddleware authenticates admin tokens only.
func (h *Handler) AdminJWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return h.jwtMiddleware(next, true)
}

func (h *Handler) jwtMiddleware(next echo.HandlerFunc, requireAdmin bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return h.jwtSecret, nil
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
		}
		if requireAdmin && !claims.Admin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}

		c.Set("username", claims.Username)
		c.Set("admin", claims.Admin)
		return next(c)
	}
}
