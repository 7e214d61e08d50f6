package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/localsquares/localsquares/pkg/response"
)

// MerchantIDKey is where the auth middleware stores the authenticated
// merchant identity in the gin context.
const MerchantIDKey = "merchant_id"

// MerchantAuth validates a bearer token minted by the external identity
// provider and injects the opaque merchant ID. The engine never issues or
// refreshes tokens.
func MerchantAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.Unauthorized(c, "invalid claims")
			c.Abort()
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			response.Unauthorized(c, "missing subject")
			c.Abort()
			return
		}
		c.Set(MerchantIDKey, sub)
		c.Next()
	}
}

// MerchantID extracts the authenticated merchant from the context.
func MerchantID(c *gin.Context) string {
	return c.GetString(MerchantIDKey)
}
