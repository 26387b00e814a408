package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"
)

// AuthMiddleware authenticates the request. A Bearer JWT in Authorization is
// verified with the HMAC secret and its sub/role claims are trusted;
// otherwise the gateway-injected X-User-ID and X-User-Role headers are used.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString := authHeader[7:]

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}

			sub, _ := claims["sub"].(string)
			if sub == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token missing subject"})
				return
			}
			role, _ := claims["role"].(string)

			c.Set(UserContextKey, sub)
			c.Set(RoleContextKey, role)
			c.Next()
			return
		}

		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, c.GetHeader("X-User-Role"))
		c.Next()
	}
}

// AdminOnly rejects requests whose authenticated role is not admin.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(RoleContextKey)
		if role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("user ID not found in context")
}
