package server

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/rollcall/internal/platform/config"
	"github.com/louisbranch/rollcall/internal/services/attendance/domain"
	"github.com/louisbranch/rollcall/internal/services/attendance/ledger"
	"github.com/louisbranch/rollcall/internal/services/attendance/notify"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreSheets = "sheets"
	StoreMemory = "memory"
)

// Lock backends.
const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

type serverEnv struct {
	Store         string        `env:"ROLLCALL_STORE" envDefault:"sqlite"`
	SQLitePath    string        `env:"ROLLCALL_SQLITE_PATH"`
	SheetID       string        `env:"GOOGLE_SHEET_ID"`
	Credentials   string        `env:"GOOGLE_CREDENTIALS"`
	LockBackend   string        `env:"ROLLCALL_LOCK_BACKEND" envDefault:"memory"`
	RedisURL      string        `env:"ROLLCALL_REDIS_URL"`
	LockGrace     time.Duration `env:"ROLLCALL_LOCK_GRACE" envDefault:"3s"`
	LockTTL       time.Duration `env:"ROLLCALL_LOCK_TTL" envDefault:"30s"`
	DayLocation   string        `env:"ROLLCALL_DAY_LOCATION" envDefault:"UTC"`
	ReadFailure   string        `env:"ROLLCALL_READ_FAILURE" envDefault:"fail"`
	DeleteCascade bool          `env:"ROLLCALL_DELETE_CASCADE" envDefault:"false"`
	KafkaBrokers  []string      `env:"ROLLCALL_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string        `env:"ROLLCALL_KAFKA_TOPIC"`
}

// settings is serverEnv after validation.
type settings struct {
	serverEnv
	days        domain.DayPolicy
	readFailure ledger.ReadFailurePolicy
}

func loadServerEnv() (settings, error) {
	var env serverEnv
	if err := config.ParseEnv(&env); err != nil {
		return settings{}, err
	}
	env.Store = strings.ToLower(strings.TrimSpace(env.Store))
	env.LockBackend = strings.ToLower(strings.TrimSpace(env.LockBackend))
	if strings.TrimSpace(env.SQLitePath) == "" {
		env.SQLitePath = filepath.Join("data", "rollcall.db")
	}
	if strings.TrimSpace(env.KafkaTopic) == "" {
		env.KafkaTopic = notify.DefaultTopic
	}

	switch env.Store {
	case StoreSQLite, StoreMemory:
	case StoreSheets:
		if strings.TrimSpace(env.SheetID) == "" {
			return settings{}, fmt.Errorf("GOOGLE_SHEET_ID is required for the %s store", StoreSheets)
		}
		if strings.TrimSpace(env.Credentials) == "" {
			return settings{}, fmt.Errorf("GOOGLE_CREDENTIALS is required for the %s store", StoreSheets)
		}
	default:
		return settings{}, fmt.Errorf("unknown store %q", env.Store)
	}

	switch env.LockBackend {
	case LockMemory:
	case LockRedis:
		if strings.TrimSpace(env.RedisURL) == "" {
			return settings{}, fmt.Errorf("ROLLCALL_REDIS_URL is required for the %s lock backend", LockRedis)
		}
	default:
		return settings{}, fmt.Errorf("unknown lock backend %q", env.LockBackend)
	}
	if env.LockTTL > 0 && env.LockTTL <= env.LockGrace {
		return settings{}, fmt.Errorf("ROLLCALL_LOCK_TTL (%s) must exceed ROLLCALL_LOCK_GRACE (%s)", env.LockTTL, env.LockGrace)
	}

	days, err := domain.LoadDayPolicy(env.DayLocation)
	if err != nil {
		return settings{}, err
	}
	readFailure, err := ledger.ParseReadFailurePolicy(env.ReadFailure)
	if err != nil {
		return settings{}, err
	}
	return settings{serverEnv: env, days: days, readFailure: readFailure}, nil
}
