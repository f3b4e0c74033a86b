package model

import "time"

// User is a registered principal of the identity provider.
//
// PasswordHash holds the bcrypt hash and carries `json:"-"` so it can never
// leak through an API response. The Snippet side of the system only ever
// references users by ID.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserRecord is the persisted shape, including the hash. The KV repository
// marshals this instead of User so the hash survives the round trip while
// staying out of API payloads.
type UserRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Record converts u to its persisted shape.
func (u *User) Record() UserRecord {
	return UserRecord{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// User converts the persisted shape back to the in-memory model.
func (r UserRecord) User() *User {
	return &User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
