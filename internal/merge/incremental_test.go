package merge

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/oracle/oracletest"
)

var observedAt = time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC)

var testSettings = model.Settings{DefaultRate: decimal.NewFromInt(175), Partner: "Dana"}

func TestNewRecordDefaults(t *testing.T) {
	e := newTestEngine(oracletest.New(), Options{})
	r := e.NewRecord(model.Observation{
		ProjectName: "  Website ",
		Description: "* built header",
		ObservedAt:  observedAt,
	}, testSettings)

	assert.Equal(t, "r9", r.ID)
	assert.Equal(t, model.UnknownClient, r.ClientName)
	assert.Equal(t, "Website", r.ProjectName)
	assert.Equal(t, "- built header", r.Description)
	assert.Equal(t, 1, r.TimeInMinutes)
	assert.Equal(t, testDate, r.Date)
	assert.True(t, r.HourlyRate.Equal(decimal.NewFromInt(175)))
	assert.Equal(t, "Dana", r.Partner)
	assert.Equal(t, fixedNow, r.CreatedAt)
}

func TestIncorporateStopsAtFirstMatch(t *testing.T) {
	fake := oracletest.New()
	e := newTestEngine(fake, Options{})
	ledger := []model.Record{
		rec("r1", "Tech Corp", "Database Migration", "- schema", 10),
		rec("r2", "Tech Corp", "Database Migration", "- indexing", 20),
	}

	inc, err := e.Incorporate(context.Background(), ledger, model.Observation{
		ClientName:  "Tech Corp",
		ProjectName: "Database Migration",
		Description: "- testing",
		ObservedAt:  observedAt,
	}, testSettings)
	require.NoError(t, err)

	require.True(t, inc.Merged())
	assert.Equal(t, "r1", inc.Replaces)
	assert.Equal(t, "r9", inc.Record.ID)
	assert.Equal(t, 11, inc.Record.TimeInMinutes)
	assert.Equal(t, "- schema\n- testing", inc.Record.Description)
	require.NotNil(t, inc.Decision)
	assert.True(t, inc.Decision.Accept())

	// Ledger input is not mutated.
	assert.Equal(t, 10, ledger[0].TimeInMinutes)
	assert.Equal(t, 20, ledger[1].TimeInMinutes)
}

func TestIncorporateNoMatch(t *testing.T) {
	e := newTestEngine(oracletest.New(), Options{})
	ledger := []model.Record{rec("r1", "Acme", "Website", "- header", 10)}

	inc, err := e.Incorporate(context.Background(), ledger, model.Observation{
		ClientName:  "Tech Corp",
		ProjectName: "Database Migration",
		Description: "- schema",
		Minutes:     5,
		ObservedAt:  observedAt,
	}, testSettings)
	require.NoError(t, err)

	assert.False(t, inc.Merged())
	assert.Nil(t, inc.Decision)
	assert.Equal(t, 5, inc.Record.TimeInMinutes)
	assert.Equal(t, "Tech Corp", inc.Record.ClientName)
}

func TestIncorporateOnlySameDay(t *testing.T) {
	e := newTestEngine(oracletest.New(), Options{})
	yesterday := rec("r1", "Tech Corp", "Database Migration", "- schema", 10)
	yesterday.Date = "2026-10-16"
	retired := rec("r2", "Tech Corp", "Database Migration", "- indexing", 10)
	retired.RetiredAt = &fixedNow

	inc, err := e.Incorporate(context.Background(), []model.Record{yesterday, retired}, model.Observation{
		ClientName:  "Tech Corp",
		ProjectName: "Database Migration",
		Description: "- schema",
		ObservedAt:  observedAt,
	}, testSettings)
	require.NoError(t, err)
	assert.False(t, inc.Merged(), "a new day starts a new record")
}

func TestIncorporateAdoptsClientIdentity(t *testing.T) {
	e := newTestEngine(oracletest.New(), Options{})
	existing := rec("r1", "Tech Corp", "Database Migration", "- schema", 30)
	existing.ClientID = "client1"
	existing.ClientAddress = "1 Main St"

	inc, err := e.Incorporate(context.Background(), []model.Record{existing}, model.Observation{
		ProjectName: "Database Migration",
		Description: "- indexing",
		ObservedAt:  observedAt,
	}, testSettings)
	require.NoError(t, err)

	require.True(t, inc.Merged())
	assert.Equal(t, "Tech Corp", inc.Record.ClientName)
	assert.Equal(t, "client1", inc.Record.ClientID)
	assert.Equal(t, "1 Main St", inc.Record.ClientAddress)
	assert.Equal(t, 31, inc.Record.TimeInMinutes)
}

func TestIncorporateAdoptsProject(t *testing.T) {
	fake := oracletest.New().SameProjects("Database Migration", "general")
	e := newTestEngine(fake, Options{})
	existing := rec("r1", "Tech Corp", "Database Migration", "- schema", 30)
	existing.Category = "Engineering"
	existing.Entities = []string{"db"}

	inc, err := e.Incorporate(context.Background(), []model.Record{existing}, model.Observation{
		ClientName:  "Tech Corp",
		ProjectName: "general",
		Description: "- schema\n- review",
		Entities:    []string{"db", "review"},
		ObservedAt:  observedAt,
	}, testSettings)
	require.NoError(t, err)

	require.True(t, inc.Merged())
	assert.Equal(t, "Database Migration", inc.Record.ProjectName)
	assert.Equal(t, "- schema\n- review", inc.Record.Description)
	assert.Equal(t, "Engineering", inc.Record.Category)
	assert.Equal(t, []string{"db", "review"}, inc.Record.Entities)
}

func TestIncorporateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newTestEngine(oracletest.New(), Options{})

	_, err := e.Incorporate(ctx, []model.Record{rec("r1", "A", "P", "- a", 1)}, model.Observation{ObservedAt: observedAt}, testSettings)
	assert.ErrorIs(t, err, context.Canceled)
}
