package app

import (
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MemberHandler 处理用户相关的 HTTP 请求
type MemberHandler struct {
	Usecase MemberUseCase
}

// NewMemberHandler 创建新的 MemberHandler
func NewMemberHandler(usecase MemberUseCase) *MemberHandler {
	return &MemberHandler{Usecase: usecase}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 注册新用户
func (h *MemberHandler) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	logger.Log.Debug("Register request", zap.String("email", req.Email))

	if err := h.Usecase.Register(c.Context(), req.Email, req.Password); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "register success"})
}

// Login 用户登录
func (h *MemberHandler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	logger.Log.Debug("Login", zap.String("Email", req.Email))

	token, err := h.Usecase.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	// chat 服務的 JWT middleware 會讀這個 cookie
	c.Cookie(&fiber.Cookie{
		Name:     middlewares.CookieToken,
		Value:    token,
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"token": token, "message": "login success"})
}

// Logout 用户登出
func (h *MemberHandler) Logout(c *fiber.Ctx) error {
	token := c.Query(middlewares.QueryToken)
	if token == "" {
		token = c.Cookies(middlewares.CookieToken)
	}
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing token"})
	}

	if err := h.Usecase.Logout(c.Context(), token); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.ClearCookie(middlewares.CookieToken)
	return c.JSON(fiber.Map{"message": "logout success"})
}

// CheckSession 查询会话是否过期
func (h *MemberHandler) CheckSession(c *fiber.Ctx) error {
	token := c.Query(middlewares.QueryToken)
	if token == "" {
		token = c.Cookies(middlewares.CookieToken)
	}

	expired, err := h.Usecase.CheckSessionTimeout(c.Context(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error(), "expired": expired})
	}
	return c.JSON(fiber.Map{"expired": expired})
}

// Reconnect 断线重连，延长会话
func (h *MemberHandler) Reconnect(c *fiber.Ctx) error {
	token := c.Query(middlewares.QueryToken)
	if token == "" {
		token = c.Cookies(middlewares.CookieToken)
	}

	if err := h.Usecase.ReconnectSession(c.Context(), token); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "session extended"})
}
