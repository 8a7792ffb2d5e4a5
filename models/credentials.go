package models

// Credentials is the authenticated session identity returned by login.
// Token is opaque to the client and attached as a bearer credential.
type Credentials struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	UserID   int64  `json:"userId"`
}
