// internal/domain/user/entity.go
package user

import (
	"time"

	"gorm.io/gorm"
)

// User represents the user entity. The identity provider owns credentials; we only
// keep the mapping from its opaque subject id to an internal record.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	AuthID    string         `gorm:"uniqueIndex;not null;size:255" json:"auth_id"`
	Email     string         `gorm:"size:255" json:"email"`
	Name      string         `gorm:"size:255" json:"name"`
	IsAdmin   bool           `gorm:"default:false" json:"is_admin"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}
