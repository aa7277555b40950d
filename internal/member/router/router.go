package router

import (
	"realtime_chat_service/internal/member/app"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes 注册用户相关的路由
func RegisterRoutes(r *fiber.App, handler *app.MemberHandler) {
	member := r.Group("/member")

	member.Post("/register", handler.Register)
	member.Post("/login", handler.Login)
	member.Post("/logout", handler.Logout)
	member.Get("/session", handler.CheckSession)
	member.Post("/reconnect", handler.Reconnect)
}
