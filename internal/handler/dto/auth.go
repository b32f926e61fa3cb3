// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// RegisterRequest represents the request body for registering a user.
type RegisterRequest struct {
	Username     string  `json:"username"`
	Password     string  `json:"password"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the login response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the machine-readable code and human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
