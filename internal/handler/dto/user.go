package dto

// UpdateUserRequest represents the request body for a partial user update.
// A non-nil password is re-hashed before storage.
type UpdateUserRequest struct {
	Username     *string `json:"username,omitempty"`
	Password     *string `json:"password,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}
