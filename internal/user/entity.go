// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

// User is owned by the identity service; this module only reads it.
type User struct {
	ID        string     `db:"id"`
	Email     string     `db:"email"`
	Name      string     `db:"name"`
	Role      string     `db:"role"`
	CreatedAt time.Time  `db:"created_at"`
	DeletedAt *time.Time `db:"deleted_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
