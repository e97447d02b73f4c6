package common

type QueueResponse struct {
	Name      string  `json:"name"`
	Vhost     string  `json:"vhost"`
	Owner     *string `json:"owner,omitempty"`
	Warned    bool    `json:"warned"`
	CreatedAt int64   `json:"createdAt"`
	UpdatedAt int64   `json:"updatedAt"`
}

type UserResponse struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"createdAt"`
}

type ErrorResponse struct {
	Code string `json:"code,omitempty"`
}
