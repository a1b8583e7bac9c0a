package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware 校验 Bearer token 并把 user_id 放进上下文，失败直接 401
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := parseToken(c, jwtSecret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "user not authenticated"})
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

// OptionalAuthMiddleware 带合法 token 就识别用户，匿名照样放行
func OptionalAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := parseToken(c, jwtSecret); ok {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}

func parseToken(c *gin.Context, jwtSecret string) (int64, bool) {
	header := c.GetHeader("Authorization")
	tokenStr, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenStr == "" {
		return 0, false
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	uidF, ok := claims["user_id"].(float64)
	if !ok {
		return 0, false
	}
	return int64(uidF), true
}
