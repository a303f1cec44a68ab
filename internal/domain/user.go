package domain

import (
	"maps"
	"time"
)

// UserRecord tracks a non-admin wallet that has authenticated at least once
type UserRecord struct {
	Address   Address     `json:"address" bson:"_id" gorm:"primaryKey"`
	FirstSeen time.Time   `json:"first_seen" bson:"first_seen"`
	LastSeen  time.Time   `json:"last_seen" bson:"last_seen"`
	Profile   UserProfile `json:"profile" bson:"profile" gorm:"serializer:json"`
}

// UserProfile holds user-editable presentation data
type UserProfile struct {
	Nickname    string            `json:"nickname" bson:"nickname"`
	Preferences map[string]string `json:"preferences,omitempty" bson:"preferences,omitempty"`
}

// TableName specifies the table name for GORM
func (UserRecord) TableName() string {
	return "users"
}

// NewUserRecord creates the record written on a wallet's first authentication
func NewUserRecord(address Address, now time.Time) *UserRecord {
	return &UserRecord{
		Address:   address,
		FirstSeen: now,
		LastSeen:  now,
		Profile: UserProfile{
			Nickname: "User" + address.Short(),
		},
	}
}

// Clone returns a deep copy
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	c.Profile.Preferences = maps.Clone(u.Profile.Preferences)
	return &c
}
