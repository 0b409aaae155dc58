package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"battle/internal/config"
	"battle/internal/models"
	"battle/internal/service"
)

// AuthHandler gère l'inscription et la connexion
type AuthHandler struct {
	users service.UserServiceInterface
	jwt   config.JWTConfig
}

// NewAuthHandler crée un nouveau handler d'authentification
func NewAuthHandler(users service.UserServiceInterface, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwtCfg}
}

// Register crée un nouveau compte
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format")
		return
	}

	resp, err := h.users.Register(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, resp.Token)
	c.JSON(http.StatusCreated, resp)
}

// Login vérifie les identifiants et émet le token de session
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format")
		return
	}

	resp, err := h.users.Login(&req)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"username":  req.Username,
			"client_ip": c.ClientIP(),
		}).Warn("Login failed")
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, resp.Token)
	c.JSON(http.StatusOK, resp)
}

// Logout efface le cookie de session
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(h.jwt.CookieName, "", -1, "/", "", h.jwt.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	maxAge := int(h.jwt.ExpirationTime.Seconds())
	c.SetCookie(h.jwt.CookieName, token, maxAge, "/", "", h.jwt.CookieSecure, true)
}
