package entity

import "time"

// User 用户, shop-floor operator or admin.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Username     string    `json:"username" gorm:"size:64;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"size:128;not null"`
	Name         string    `json:"name" gorm:"size:128"`
	Role         string    `json:"role" gorm:"size:16;default:employee"` // admin/employee
	Status       string    `json:"status" gorm:"size:16;default:active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

// PartDrawing 零件图纸, uploaded drawing file reference stored in MinIO.
type PartDrawing struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	PartID     string    `json:"part_id" gorm:"size:36;not null;index"`
	FileName   string    `json:"file_name" gorm:"size:256;not null"`
	ObjectKey  string    `json:"object_key" gorm:"size:512;not null"`
	FileSize   int64     `json:"file_size"`
	UploadedBy *string   `json:"uploaded_by" gorm:"size:36"`
	CreatedAt  time.Time `json:"created_at"`
}

func (PartDrawing) TableName() string {
	return "part_drawings"
}
