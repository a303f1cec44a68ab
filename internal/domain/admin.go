package domain

import (
	"fmt"
	"slices"
	"time"
)

// AdminRecord is an entry of the admin registry, keyed by address
type AdminRecord struct {
	Address         Address    `json:"address" bson:"_id" gorm:"primaryKey"`
	Role            Role       `json:"role" bson:"role" gorm:"not null"`
	Name            string     `json:"name" bson:"name"`
	Department      string     `json:"department,omitempty" bson:"department,omitempty"`
	JobTitle        string     `json:"job_title,omitempty" bson:"job_title,omitempty"`
	Permissions     []string   `json:"permissions" bson:"permissions" gorm:"serializer:json"`
	Active          bool       `json:"active" bson:"active"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	CreatedBy       string     `json:"created_by" bson:"created_by"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
	PreviousAddress Address    `json:"previous_address,omitempty" bson:"previous_address,omitempty"`
	WalletChangedAt *time.Time `json:"wallet_changed_at,omitempty" bson:"wallet_changed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (AdminRecord) TableName() string {
	return "admins"
}

// NewSuperAdmin builds the bootstrap SuperAdmin record
func NewSuperAdmin(address Address, now time.Time) *AdminRecord {
	return &AdminRecord{
		Address:     address,
		Role:        RoleSuperAdmin,
		Name:        "Super Administrator",
		Department:  "System",
		JobTitle:    "Super Admin",
		Permissions: slices.Clone(SuperAdminPermissions),
		Active:      true,
		CreatedAt:   now,
		CreatedBy:   SystemActor,
		UpdatedAt:   now,
	}
}

// HasPermission reports whether the admin holds the named permission
func (a *AdminRecord) HasPermission(permission string) bool {
	return slices.Contains(a.Permissions, permission)
}

// EffectiveRole is the role an authentication resolves to for this record
func (a *AdminRecord) EffectiveRole() Role {
	if !a.Active {
		return RoleInactive
	}
	return a.Role
}

// Clone returns a deep copy so stores never share mutable state with callers
func (a *AdminRecord) Clone() *AdminRecord {
	if a == nil {
		return nil
	}
	c := *a
	c.Permissions = slices.Clone(a.Permissions)
	if a.WalletChangedAt != nil {
		t := *a.WalletChangedAt
		c.WalletChangedAt = &t
	}
	return &c
}

// JobTitleFor renders the job title used for created admins
func JobTitleFor(role Role, department string) string {
	if department == "" {
		return role.String()
	}
	return fmt.Sprintf("%s - %s", role, department)
}

// CreateAdminRequest carries the attributes of a new admin
type CreateAdminRequest struct {
	Address     string   `json:"address" binding:"required"`
	Role        Role     `json:"role,omitempty"`
	Name        string   `json:"name,omitempty"`
	Department  string   `json:"department,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}
