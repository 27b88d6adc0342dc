package models

// User represents a registered account.
type User struct {
	ID       int64
	Username string
	Email    string
	PassHash []byte
	Currency string
}
