package model

import "time"

// User represents a registered account.
//
// The username is the unique key — there is no separate numeric ID because
// the store is a flat keyed map, not a relational database.
//
// WHY PasswordHash AND NOT Password?
// We never hold the plaintext beyond the register/login call that receives
// it. The stored value is a bcrypt hash, which is self-contained (the salt
// and cost are embedded in the hash string). The `json:"-"` tag means the
// hash can never leak through an API response, even if a handler
// accidentally serialises a full User.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
