package authapi

// credentialsRequest is the body of both /register and /login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
