package authapi

import "time"

type signupRequest struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	Password    string  `json:"password"`
	Role        string  `json:"role"`
	RememberMe  bool    `json:"remember_me"`
	Platform    string  `json:"platform"`
}

type loginRequest struct {
	Username   *string `json:"username"`
	Email      *string `json:"email"`
	Password   string  `json:"password"`
	RememberMe bool    `json:"remember_me"`
	Platform   string  `json:"platform"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	RememberMe   bool   `json:"remember_me"`
	Platform     string `json:"platform"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Username    *string   `json:"username"`
	Email       *string   `json:"email"`
	DisplayName *string   `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type sessionResponse struct {
	SessionID        string    `json:"session_id"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type signupResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

type loginResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

type refreshResponse struct {
	Session sessionResponse `json:"session"`
}

type meResponse struct {
	User userResponse `json:"user"`
}
