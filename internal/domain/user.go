package domain

import "time"

// User is an API principal. The api key presented on requests is
// "<key_id>.<secret>"; only a bcrypt hash of the secret is stored.
type User struct {
	ID         int64     // BIGSERIAL
	Username   string    // TEXT
	KeyID      string    // TEXT, unique
	APIKeyHash string    // TEXT, bcrypt
	Enabled    bool      // BOOLEAN
	Created    time.Time // TIMESTAMP
}
