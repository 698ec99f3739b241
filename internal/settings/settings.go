// Package settings reads the billing defaults (hourly rate, partner) that
// new ledger records carry. Values are read at call time so edits take
// effect on the next observation.
package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rcliao/wip-ledger/internal/logging"
	"github.com/rcliao/wip-ledger/internal/model"
)

// ErrNoSettings is returned by a Source that holds no values.
var ErrNoSettings = errors.New("no settings configured")

// Source provides the raw settings. Missing fields are left zero.
type Source interface {
	Settings(ctx context.Context) (model.Settings, error)
}

// Static is a fixed Source, typically built from the config file.
type Static struct {
	Rate    decimal.Decimal
	HasRate bool
	Partner string
}

func (s Static) Settings(context.Context) (model.Settings, error) {
	if !s.HasRate && s.Partner == "" {
		return model.Settings{}, ErrNoSettings
	}
	out := model.Settings{Partner: s.Partner}
	if s.HasRate {
		out.DefaultRate = s.Rate
	}
	return out, nil
}

// Chain consults sources in order; each field comes from the first source
// that sets it.
type Chain []Source

func (c Chain) Settings(ctx context.Context) (model.Settings, error) {
	var out model.Settings
	var rateSet, found bool
	for _, src := range c {
		if src == nil {
			continue
		}
		s, err := src.Settings(ctx)
		if errors.Is(err, ErrNoSettings) {
			continue
		}
		if err != nil {
			return model.Settings{}, err
		}
		found = true
		if !rateSet && !s.DefaultRate.IsZero() {
			out.DefaultRate = s.DefaultRate
			rateSet = true
		}
		if out.Partner == "" && strings.TrimSpace(s.Partner) != "" {
			out.Partner = s.Partner
		}
	}
	if !found {
		return model.Settings{}, ErrNoSettings
	}
	return out, nil
}

// Resolve reads src and fills the documented fallbacks: rate 150 and
// partner "Unknown". Source errors are logged and fall back as well.
func Resolve(ctx context.Context, src Source) model.Settings {
	out := model.DefaultSettings()
	if src == nil {
		return out
	}
	s, err := src.Settings(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSettings) {
			logging.Info("settings", "read failed, using fallbacks: %v", err)
		}
		return out
	}
	if s.DefaultRate.IsPositive() {
		out.DefaultRate = s.DefaultRate
	}
	if p := strings.TrimSpace(s.Partner); p != "" {
		out.Partner = p
	}
	return out
}
