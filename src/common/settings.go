package common

import (
	"context"
	"courtbook/src/config"
	"courtbook/src/models"
	"courtbook/src/types"
	"log"
	"time"
)

// Settings reads tunables on every call so operators can change them without a restart.
type Settings struct {
	Store Store
}

func NewSettings(store Store) *Settings {
	return &Settings{Store: store}
}

func (s *Settings) readInt(ctx context.Context, group, key string) (int, bool) {
	setting, err := s.Store.GetSetting(ctx, group, key)
	if err != nil {
		if !IsNotFound(err) {
			log.Printf("[Settings] Error reading %s.%s: %s\n", group, key, err.Error())
		}
		return 0, false
	}
	return setting.IntValue()
}

// HoldMinutes is the hold duration for a pending payment in the given scope.
func (s *Settings) HoldMinutes(ctx context.Context, scope types.HoldScope) int {
	group, envKey, fallback := models.SETTING_GROUP_BOOKING, "HOLD_MINUTES", config.DEFAULT_HOLD_MINUTES
	if scope == types.HOLD_SCOPE_MEMBERSHIP {
		group, envKey, fallback = models.SETTING_GROUP_MEMBERSHIP, "MEMBERSHIP_HOLD_MINUTES", config.DEFAULT_MEMBERSHIP_HOLD_MINUTES
	}
	if v, ok := s.readInt(ctx, group, models.SETTING_HOLD_MINUTES); ok && v > 0 {
		return v
	}
	return config.Int(envKey, fallback)
}

func (s *Settings) LateFeePercent(ctx context.Context) int {
	if v, ok := s.readInt(ctx, models.SETTING_GROUP_CHECKOUT, models.SETTING_LATE_FEE_PERCENT); ok && v >= 0 {
		return v
	}
	return config.Int("LATE_FEE_PERCENT", config.DEFAULT_LATE_FEE_PERCENT)
}

func (s *Settings) Currency() string {
	return config.String("CURRENCY", config.DEFAULT_CURRENCY)
}

// Location is the venue timezone used to turn dates and wall-clock times into instants.
func (s *Settings) Location() *time.Location {
	return config.Location()
}

func (s *Settings) Save(ctx context.Context, group, key string, value any) (*models.Setting, error) {
	setting := &models.Setting{
		Group:        group,
		SettingKey:   key,
		SettingValue: types.JSONBAny{Inner: value},
	}
	if err := s.Store.SaveSetting(ctx, setting); err != nil {
		return nil, err
	}
	return setting, nil
}
