package serverutils

import (
	"fmt"
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const LocalUserID = "user_id"

// JwtMiddleware verifies an HS256 bearer token signed with secret and stores
// its user_id claim (or sub) in the request locals.
func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}
		tokenStr := authHeader[7:]

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims"))
		}

		userId := claimString(claims, "user_id")
		if userId == "" {
			userId, _ = claims.GetSubject()
		}
		if userId == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Token has no user"))
		}

		ctx.Locals(LocalUserID, userId)
		return ctx.Next()
	}
}

// AdminOnly lets through users listed in adminIds. It must run after
// JwtMiddleware.
func AdminOnly(adminIds []string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if !slices.Contains(adminIds, UserID(ctx)) {
			return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(fiber.StatusForbidden, "Admin access required"))
		}
		return ctx.Next()
	}
}

// UserID returns the caller resolved by JwtMiddleware.
func UserID(ctx *fiber.Ctx) string {
	userId, _ := ctx.Locals(LocalUserID).(string)
	return userId
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
