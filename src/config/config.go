package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// const dsn = "host=localhost user=postgres password=password dbname=courtbook port=5432 sslmode=disable TimeZone=UTC"

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE)
	return dsn
}

var (
	API_ENV        = os.Getenv("API_ENV")
	APP_HOST       = os.Getenv("APP_HOST")
	VENUE_TIMEZONE = os.Getenv("VENUE_TIMEZONE")
)

const (
	DEFAULT_HOLD_MINUTES            = 15
	DEFAULT_MEMBERSHIP_HOLD_MINUTES = 5
	DEFAULT_LATE_FEE_PERCENT        = 100
	DEFAULT_CURRENCY                = "PHP"
)

// Int reads an integer env var, returning fallback when unset or malformed.
func Int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func Bool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func String(key string, fallback string) string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	return raw
}

// Seconds reads a duration expressed in whole seconds.
func Seconds(key string, fallback int) time.Duration {
	value := Int(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

// Location resolves VENUE_TIMEZONE, defaulting to UTC.
func Location() *time.Location {
	name := String("VENUE_TIMEZONE", VENUE_TIMEZONE)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
