package common

type NewUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}
