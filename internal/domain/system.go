package domain

import "time"

// SystemVersion is recorded in SystemConfig at bootstrap
const SystemVersion = "1.0.0"

// SystemConfig is the persisted system configuration written at bootstrap
type SystemConfig struct {
	ID          string    `json:"-" bson:"_id" gorm:"primaryKey"`
	Initialized bool      `json:"initialized" bson:"initialized"`
	Version     string    `json:"version" bson:"version"`
	SetupDate   time.Time `json:"setup_date" bson:"setup_date"`
	SetupBy     Address   `json:"setup_by" bson:"setup_by"`
}

// SystemConfigID is the key of the singleton SystemConfig document
const SystemConfigID = "system"

// TableName specifies the table name for GORM
func (SystemConfig) TableName() string {
	return "system_config"
}

// NewSystemConfig creates the configuration written when the first admin is set up
func NewSystemConfig(setupBy Address, now time.Time) *SystemConfig {
	return &SystemConfig{
		ID:          SystemConfigID,
		Initialized: true,
		Version:     SystemVersion,
		SetupDate:   now,
		SetupBy:     setupBy,
	}
}

// ResetCounts reports how many records a system reset removed
type ResetCounts struct {
	Admins int64 `json:"admins"`
	Users  int64 `json:"users"`
	Config int64 `json:"config"`
}

// Total returns the number of removed records
func (r ResetCounts) Total() int64 {
	return r.Admins + r.Users + r.Config
}
