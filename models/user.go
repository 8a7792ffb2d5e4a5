package models

// User is one entry of the server's user listing.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
