package delivery

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys populated by SessionMiddleware.
const (
	ContextUserEmail   = "userEmail"
	ContextAccessToken = "accessToken"
)

// SessionMiddleware validates the bearer session token minted by the auth
// subsystem and exposes the user's email and provider access token to
// handlers. Credential issuing and refresh live outside this service.
func SessionMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		userEmail, accessToken, err := parseSessionToken(parts[1], jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserEmail, userEmail)
		c.Set(ContextAccessToken, accessToken)
		c.Next()
	}
}

func parseSessionToken(tokenString, secret string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid token claims")
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", "", errors.New("invalid token claims")
	}
	accessToken, ok := claims["access_token"].(string)
	if !ok || accessToken == "" {
		return "", "", errors.New("invalid token claims")
	}

	return email, accessToken, nil
}
