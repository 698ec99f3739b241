// Package model defines the core ledger data types.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownClient marks a record whose client has not been identified yet.
// It is compatible with every other client value when deciding merges.
const UnknownClient = "Unknown"

// DateLayout is the calendar-day format used for Record.Date.
const DateLayout = "2006-01-02"

// Record is one WIP ledger entry: either a raw observation or the
// consolidated result of several of them.
type Record struct {
	ID            string          `json:"id"`
	ClientName    string          `json:"client_name"`
	ProjectName   string          `json:"project_name"`
	Description   string          `json:"description"`
	TimeInMinutes int             `json:"time_in_minutes"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
	Date          string          `json:"date"`
	ClientID      string          `json:"client_id,omitempty"`
	ClientAddress string          `json:"client_address,omitempty"`
	Partner       string          `json:"partner,omitempty"`
	Category      string          `json:"category,omitempty"`
	Entities      []string        `json:"entities,omitempty"`
	Retainer      bool            `json:"retainer,omitempty"`
	Adjustment    decimal.Decimal `json:"adjustment"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	RetiredAt     *time.Time      `json:"retired_at,omitempty"`
	AbsorbedInto  string          `json:"absorbed_into,omitempty"`
}

// HasKnownClient reports whether the client has been identified.
func (r Record) HasKnownClient() bool {
	return r.ClientName != "" && r.ClientName != UnknownClient
}

// HasGenericProject reports whether the project is empty or the catch-all
// "general" bucket.
func (r Record) HasGenericProject() bool {
	p := strings.TrimSpace(r.ProjectName)
	return p == "" || strings.EqualFold(p, "general")
}

// Amount is the billable value of the record, rounded to cents.
// Retainer work only carries its adjustment.
func (r Record) Amount() decimal.Decimal {
	total := r.Adjustment
	if !r.Retainer {
		hours := decimal.NewFromInt(int64(r.TimeInMinutes)).Div(decimal.NewFromInt(60))
		total = total.Add(r.HourlyRate.Mul(hours))
	}
	return total.Round(2)
}

// Clone returns a deep copy so merges never alias the source slices.
func (r Record) Clone() Record {
	c := r
	if r.Entities != nil {
		c.Entities = append([]string(nil), r.Entities...)
	}
	if r.RetiredAt != nil {
		t := *r.RetiredAt
		c.RetiredAt = &t
	}
	return c
}

// Observation is a single capture-layer sample, normally one minute of work.
type Observation struct {
	ClientName    string    `json:"client_name"`
	ClientID      string    `json:"client_id,omitempty"`
	ClientAddress string    `json:"client_address,omitempty"`
	ProjectName   string    `json:"project_name"`
	Description   string    `json:"description"`
	Category      string    `json:"category,omitempty"`
	Entities      []string  `json:"entities,omitempty"`
	Minutes       int       `json:"minutes,omitempty"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Settings carries the externally configured billing defaults.
type Settings struct {
	DefaultRate decimal.Decimal `json:"default_rate"`
	Partner     string          `json:"partner"`
}

// Fallback settings used when no settings source has values.
var (
	FallbackRate    = decimal.NewFromInt(150)
	FallbackPartner = UnknownClient
)

// DefaultSettings returns the documented fallbacks.
func DefaultSettings() Settings {
	return Settings{DefaultRate: FallbackRate, Partner: FallbackPartner}
}
