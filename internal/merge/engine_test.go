package merge

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/wip-ledger/internal/model"
	"github.com/rcliao/wip-ledger/internal/oracle"
	"github.com/rcliao/wip-ledger/internal/oracle/oracletest"
)

const testDate = "2026-10-17"

var fixedNow = time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)

func rec(id, client, project, desc string, minutes int) model.Record {
	return model.Record{
		ID:            id,
		ClientName:    client,
		ProjectName:   project,
		Description:   desc,
		TimeInMinutes: minutes,
		HourlyRate:    decimal.NewFromInt(150),
		Date:          testDate,
		CreatedAt:     time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}
}

func newTestEngine(fake *oracletest.Fake, opts Options) *Engine {
	return New(oracle.New(fake, oracle.NewCache(0)), opts,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func(time.Time) string { return "r9" }),
	)
}

func ids(groups [][]model.Record) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		for _, r := range g {
			out[i] = append(out[i], r.ID)
		}
	}
	return out
}

func TestClusterPartition(t *testing.T) {
	ledger := []model.Record{
		rec("r1", "Tech Corp", "Database Migration", "- schema", 30),
		rec("r2", "Acme", "Website", "- landing page", 10),
		rec("r3", "Tech Corp", "Database Migration", "- indexing", 45),
		rec("r4", "Unknown", "Database Migration", "- optimization", 60),
		rec("r5", "Acme", "Website", "- footer", 5),
		rec("r6", "Globex", "Audit", "- ledger review", 20),
	}
	e := newTestEngine(oracletest.New(), Options{})

	groups, err := e.Cluster(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"r1", "r3", "r4"}, {"r2", "r5"}, {"r6"}}, ids(groups))

	seen := map[string]int{}
	for _, g := range groups {
		for _, r := range g {
			seen[r.ID]++
		}
	}
	require.Len(t, seen, len(ledger))
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s appears %d times", id)
	}
}

func TestClusterRequiresEveryMember(t *testing.T) {
	// Unknown is compatible with both X and Y, but X and Y are not
	// compatible with each other, so Y cannot join the cluster.
	ledger := []model.Record{
		rec("r1", "Unknown", "P", "- a", 1),
		rec("r2", "X Corp", "P", "- b", 1),
		rec("r3", "Y Corp", "P", "- c", 1),
	}
	e := newTestEngine(oracletest.New(), Options{})

	groups, err := e.Cluster(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"r1", "r2"}, {"r3"}}, ids(groups))
}

func TestClusterDeterministicAcrossConcurrency(t *testing.T) {
	clients := []string{"Alpha", "Beta", "Unknown", "Gamma"}
	projects := []string{"P", "Q", "P"}
	var ledger []model.Record
	for i := 0; i < 24; i++ {
		ledger = append(ledger, rec(fmt.Sprintf("r%02d", i), clients[i%len(clients)], projects[i%len(projects)], fmt.Sprintf("- task %d", i), i+1))
	}

	var want [][]string
	for _, c := range []int{1, 2, 8, 32} {
		e := newTestEngine(oracletest.New().SameClients("Alpha", "Gamma"), Options{Concurrency: c})
		groups, err := e.Cluster(context.Background(), ledger)
		require.NoError(t, err)
		got := ids(groups)
		if want == nil {
			want = got
			continue
		}
		assert.Equal(t, want, got, "concurrency %d", c)
	}
}

func TestClusterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newTestEngine(oracletest.New(), Options{})
	_, err := e.Cluster(ctx, []model.Record{rec("r1", "A", "P", "- a", 1), rec("r2", "A", "P", "- b", 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClusterEmpty(t *testing.T) {
	e := newTestEngine(oracletest.New(), Options{})
	groups, err := e.Cluster(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestConsolidateTechCorpScenario(t *testing.T) {
	fake := oracletest.New()
	fake.CombineAll = true
	e := newTestEngine(fake, Options{})

	group := []model.Record{
		rec("r1", "Tech Corp", "Database Migration", "Initial schema design", 30),
		rec("r2", "Tech Corp", "Database Migration", "Database indexing implementation", 45),
		rec("r3", "Tech Corp", "Database Migration", "Performance optimization and testing", 60),
	}
	out, err := e.Consolidate(context.Background(), group)
	require.NoError(t, err)

	assert.Equal(t, 135, out.TimeInMinutes)
	for _, kw := range []string{"schema", "indexing", "optimization"} {
		assert.Contains(t, out.Description, kw)
	}
	assert.Equal(t, "Tech Corp", out.ClientName)
	assert.Equal(t, "r3", out.ID)
	assert.Equal(t, fixedNow, out.UpdatedAt)
}

func TestConsolidateUnknownClientResolution(t *testing.T) {
	unknown := rec("r1", "Unknown", "Database Migration", "- a", 10)
	known := rec("r2", "Tech Corp", "Database Migration", "- b", 20)
	known.ClientID = "client1"
	known.ClientAddress = "1 Main St"
	e := newTestEngine(oracletest.New(), Options{})

	for _, group := range [][]model.Record{{unknown, known}, {known, unknown}} {
		out, err := e.Consolidate(context.Background(), group)
		require.NoError(t, err)
		assert.Equal(t, "Tech Corp", out.ClientName)
		assert.Equal(t, "client1", out.ClientID)
		assert.Equal(t, "1 Main St", out.ClientAddress)
		assert.Equal(t, 30, out.TimeInMinutes)
	}

	// When the known record is the older one, its identity still wins over
	// the later Unknown record that supplies the other metadata.
	older := rec("r0", "Tech Corp", "Database Migration", "- c", 5)
	older.ClientID = "client1"
	out, err := e.Consolidate(context.Background(), []model.Record{unknown, older})
	require.NoError(t, err)
	assert.Equal(t, "Tech Corp", out.ClientName)
	assert.Equal(t, "client1", out.ClientID)
	assert.Equal(t, "r1", out.ID)
}

func TestConsolidateAllUnknown(t *testing.T) {
	e := newTestEngine(oracletest.New(), Options{})
	out, err := e.Consolidate(context.Background(), []model.Record{
		rec("r1", "Unknown", "P", "- a", 1),
		rec("r2", "Unknown", "P", "- b", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, model.UnknownClient, out.ClientName)
}

func TestConsolidateFollowsIDOrder(t *testing.T) {
	fake := oracletest.New()
	fake.CombineAll = true
	e := newTestEngine(fake, Options{})

	a := rec("r1", "X", "P", "- alpha", 1)
	b := rec("r2", "X", "P", "- beta", 1)
	c := rec("r3", "X", "P", "- gamma", 1)

	forward, err := e.Consolidate(context.Background(), []model.Record{a, b, c})
	require.NoError(t, err)
	reversed, err := e.Consolidate(context.Background(), []model.Record{c, b, a})
	require.NoError(t, err)

	assert.Equal(t, "- alpha, - beta, - gamma", forward.Description)
	assert.Equal(t, forward.Description, reversed.Description, "assembly follows id order, not input order")

	// Swapping ids changes the assembly.
	a.ID, c.ID = c.ID, a.ID
	swapped, err := e.Consolidate(context.Background(), []model.Record{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, "- gamma, - beta, - alpha", swapped.Description)
}

func TestConsolidateDescriptionRules(t *testing.T) {
	fake := oracletest.New().
		SameTask("- Fix login", "- Fix the login redirect").
		Combine("- step one\n- shared", "- step two", "- step one\n- shared\n- shared\n- step two")
	e := newTestEngine(fake, Options{})
	ctx := context.Background()

	out, err := e.Consolidate(ctx, []model.Record{
		rec("r1", "X", "P", "- Fix login", 1),
		rec("r2", "X", "P", "- Fix the login redirect", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "- Fix the login redirect", out.Description, "same task keeps the longer wording")

	out, err = e.Consolidate(ctx, []model.Record{
		rec("r1", "X", "P", "- step one\n- shared", 1),
		rec("r2", "X", "P", "- step two", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "- step one\n- shared\n- step two", out.Description, "duplicate lines removed")

	out, err = e.Consolidate(ctx, []model.Record{
		rec("r1", "X", "P", "- unrelated a", 1),
		rec("r2", "X", "P", "- unrelated b", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "- unrelated a", out.Description, "unrelated keeps the current description")
}

func TestConsolidateSingletonIdentity(t *testing.T) {
	e := newTestEngine(oracletest.New(), Options{})
	in := rec("r1", "Tech Corp", "P", "- a\n- b", 42)
	in.Entities = []string{"invoice-7"}
	in.Adjustment = decimal.NewFromInt(-25)

	out, err := e.Consolidate(context.Background(), []model.Record{in})
	require.NoError(t, err)

	want := in.Clone()
	want.UpdatedAt = fixedNow
	assert.Equal(t, want, out)
}

func TestConsolidateTimeConservation(t *testing.T) {
	fake := oracletest.New()
	fake.CombineAll = true
	e := newTestEngine(fake, Options{})

	for n := 1; n <= 8; n++ {
		var group []model.Record
		sum := 0
		for i := 0; i < n; i++ {
			m := (i*37 + n*11) % 97
			sum += m
			group = append(group, rec(fmt.Sprintf("r%d", i), "X", "P", fmt.Sprintf("- t%d", i), m))
		}
		out, err := e.Consolidate(context.Background(), group)
		require.NoError(t, err)
		assert.Equal(t, sum, out.TimeInMinutes, "group of %d", n)
		lines := strings.Split(out.Description, "\n")
		assert.Len(t, lines, len(uniq(lines)))
	}
}

func TestConsolidateEmpty(t *testing.T) {
	e := newTestEngine(oracletest.New(), Options{})
	_, err := e.Consolidate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestNormalizePlan(t *testing.T) {
	ledger := []model.Record{
		rec("r1", "Tech Corp", "Database Migration", "- schema", 30),
		rec("r2", "Acme", "Website", "- landing page", 10),
		rec("r3", "Tech Corp", "Database Migration", "- indexing", 45),
		rec("r4", "Unknown", "Database Migration", "- optimization", 60),
	}
	e := newTestEngine(oracletest.New(), Options{})

	plan, err := e.Normalize(context.Background(), ledger)
	require.NoError(t, err)

	assert.Equal(t, 2, plan.Clusters)
	assert.Equal(t, 4, plan.Input)
	require.Len(t, plan.Upserts, 1)
	merged := plan.Upserts[0]
	assert.Equal(t, "r4", merged.ID)
	assert.Equal(t, "Tech Corp", merged.ClientName)
	assert.Equal(t, 135, merged.TimeInMinutes)
	assert.Equal(t, []string{"r1", "r3"}, plan.Retire)
	require.Len(t, plan.Absorbed, 2)
	for _, a := range plan.Absorbed {
		assert.Equal(t, "r4", a.Into)
		assert.InDelta(t, 0.8, a.Confidence, 1e-9)
		assert.True(t, a.Partial)
	}
	assert.False(t, plan.Empty())

	// Total minutes across the ledger are conserved by the plan.
	total := 0
	for _, r := range ledger {
		total += r.TimeInMinutes
	}
	after := merged.TimeInMinutes + ledger[1].TimeInMinutes
	assert.Equal(t, total, after)
}

func TestNormalizePlanExhaustiveConfidence(t *testing.T) {
	fake := oracletest.New()
	fake.CombineAll = true
	e := newTestEngine(fake, Options{Exhaustive: true})

	plan, err := e.Normalize(context.Background(), []model.Record{
		rec("r1", "Tech Corp", "Database Migration", "- schema", 30),
		rec("r2", "Tech Corp", "Database Migration", "- indexing", 45),
	})
	require.NoError(t, err)
	require.Len(t, plan.Absorbed, 1)
	assert.InDelta(t, 1.0, plan.Absorbed[0].Confidence, 1e-9)
	assert.False(t, plan.Absorbed[0].Partial)
}

func TestNormalizeNothingToMerge(t *testing.T) {
	e := newTestEngine(oracletest.New(), Options{})
	plan, err := e.Normalize(context.Background(), []model.Record{
		rec("r1", "A", "P", "- a", 1),
		rec("r2", "B", "Q", "- b", 1),
	})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, 2, plan.Clusters)
}

func uniq(lines []string) map[string]bool {
	m := map[string]bool{}
	for _, l := range lines {
		m[l] = true
	}
	return m
}
