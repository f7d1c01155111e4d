package dto

import "time"

type ConnectSocialAccountRequest struct {
	Provider    string `json:"provider" binding:"required,oneof=facebook instagram"`
	Handle      string `json:"handle" binding:"required"`
	AccessToken string `json:"access_token" binding:"required"`
}

type SocialPostRequest struct {
	Body      string   `json:"body" binding:"required,max=5000"`
	MediaURLs []string `json:"media_urls,omitempty" binding:"omitempty,max=10,dive,url"`
}

type SchedulePostRequest struct {
	PostID      int64     `json:"post_id,string" binding:"required"`
	AccountID   int64     `json:"account_id,string" binding:"required"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}
