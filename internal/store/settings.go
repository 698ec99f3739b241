package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/settings"
)

// Setting keys.
const (
	SettingDefaultRate = "default_rate"
	SettingPartner     = "partner"
)

var settingKeys = map[string]bool{SettingDefaultRate: true, SettingPartner: true}

// SetSetting stores one billing setting. The rate must be a non-negative decimal.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	if !settingKeys[key] {
		return fmt.Errorf("unknown setting %q (valid: %s, %s)", key, SettingDefaultRate, SettingPartner)
	}
	if key == SettingDefaultRate {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("invalid rate %q: %w", value, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("invalid rate %q: must not be negative", value)
		}
		value = d.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// Settings implements settings.Source over the settings table.
func (s *SQLiteStore) Settings(ctx context.Context) (model.Settings, error) {
	var out model.Settings
	found := false

	var rate string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, SettingDefaultRate).Scan(&rate)
	switch {
	case err == nil:
		d, perr := decimal.NewFromString(rate)
		if perr != nil {
			return model.Settings{}, fmt.Errorf("stored rate %q: %w", rate, perr)
		}
		out.DefaultRate = d
		found = true
	case !errors.Is(err, sql.ErrNoRows):
		return model.Settings{}, fmt.Errorf("read rate: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, SettingPartner).Scan(&out.Partner)
	switch {
	case err == nil:
		found = true
	case !errors.Is(err, sql.ErrNoRows):
		return model.Settings{}, fmt.Errorf("read partner: %w", err)
	}

	if !found {
		return model.Settings{}, settings.ErrNoSettings
	}
	return out, nil
}
