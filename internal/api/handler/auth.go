package handler

import (
	"net/http"
	"strings"
	"time"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

// generateJWT signs a token carrying the caller's identity and role.
func generateJWT(secret []byte, userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(config.TokenTTL).Unix(),
		"iss":  config.TokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// parseJWT validates a token and returns {id, role}.
func parseJWT(secret []byte, tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(config.TokenIssuer))
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", jwt.ErrTokenInvalidClaims
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	return sub, role, nil
}

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// IssueToken is the identity-collaborator shim: it mints a JWT for a
// caller, creating a citizen record when no user_id is supplied.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	_ = c.ShouldBindJSON(&req)

	role := req.Role
	switch role {
	case models.RoleCitizen, models.RoleAdmin, models.RoleAuthority:
	case "":
		role = models.RoleCitizen
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	userID := req.UserID
	if userID == "" {
		user := &models.User{Name: req.Name, Email: req.Email, Role: role}
		if err := h.Storage.CreateUser(user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		userID = user.ID
	}

	token, err := generateJWT(h.JWTSecret, userID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": userID, "role": role})
}

// AuthRequired extracts the caller's {id, role} from the bearer token.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, err := h.callerFromHeader(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}

// RequireRole gates a route to one role. AuthRequired must run first.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

func (h *Handler) callerFromHeader(c *gin.Context) (string, string, error) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "", jwt.ErrTokenMalformed
	}
	return parseJWT(h.JWTSecret, strings.TrimPrefix(authHeader, "Bearer "))
}
