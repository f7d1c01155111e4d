package dto

import (
	"time"

	"leadmap.app/server/internal/model"
)

type RefreshTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type AuthResponse struct {
	User        *model.User `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}
