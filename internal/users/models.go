package users

import "time"

// User is a staff member of the sales console.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public is the shape safe to embed in API responses.
type Public struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u User) Public() Public {
	return Public{ID: u.ID, Email: u.Email, Name: u.Name}
}
