package models

import (
	"courtbook/src/types"

	"github.com/google/uuid"
)

const (
	SETTING_GROUP_BOOKING    = "booking"
	SETTING_GROUP_MEMBERSHIP = "membership"
	SETTING_GROUP_CHECKOUT   = "checkout"

	SETTING_HOLD_MINUTES     = "hold_minutes"
	SETTING_LATE_FEE_PERCENT = "late_fee_percent"
)

type Setting struct {
	ID           uuid.UUID      `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	SettingKey   string         `gorm:"uniqueIndex:idx_settings_key_group" json:"setting_key"`
	SettingValue types.JSONBAny `gorm:"type:jsonb" json:"setting_value"`
	Group        string         `gorm:"uniqueIndex:idx_settings_key_group" json:"group,omitempty"`

	types.Timestamps
}

// IntValue reads a numeric setting; JSON numbers arrive as float64.
func (s *Setting) IntValue() (int, bool) {
	switch v := s.SettingValue.Inner.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}
