package user

import "time"

type User struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;uniqueIndex;not null"`
	Role      string    `gorm:"column:role;not null;index"`
	Division  *string   `gorm:"column:division;index"`
	Specialty string    `gorm:"column:specialty"`
	AvatarURL string    `gorm:"column:avatar_url"`
	Status    string    `gorm:"column:status;not null;default:active"`
	JoinedAt  time.Time `gorm:"column:joined_at;not null;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// Provisioning tracks the two-step identity + directory write for one user.
type Provisioning struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Email      string    `gorm:"column:email;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	Role       string    `gorm:"column:role;not null"`
	Division   *string   `gorm:"column:division"`
	Specialty  string    `gorm:"column:specialty"`
	AvatarURL  string    `gorm:"column:avatar_url"`
	State      string    `gorm:"column:state;not null;index"`
	IdentityID *string   `gorm:"column:identity_id"`
	LastError  string    `gorm:"column:last_error"`
	Attempts   int       `gorm:"column:attempts;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Provisioning) TableName() string {
	return "provisionings"
}
