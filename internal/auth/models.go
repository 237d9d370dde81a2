package auth

import "time"

// User is an explorer profile. The street and distance totals are
// maintained by the track store on every saved session.
type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Username             string    `json:"username"`
	PasswordHash         string    `json:"-"`
	FullName             string    `json:"full_name,omitempty"`
	AvatarURL            string    `json:"avatar_url,omitempty"`
	HomeCity             string    `json:"home_city,omitempty"`
	TotalStreetsExplored int       `json:"total_streets_explored"`
	TotalDistanceMeters  float64   `json:"total_distance_meters"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	HomeCity string `json:"home_city"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
