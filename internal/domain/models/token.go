package models

import "time"

// TokenRecord represents an issued access/refresh token pair stored in the database.
// Status transitions only from true (active) to false (invalidated); a record is
// eligible for purge only once Status is false.
type TokenRecord struct {
	UserID       int64
	AccessToken  string
	RefreshToken string
	Status       bool
	CreatedAt    time.Time
}

// SweepResult reports the outcome of one invalidate-then-purge pass over the ledger.
type SweepResult struct {
	Invalidated int64
	Purged      int64
}
