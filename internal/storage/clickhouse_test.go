package storage

import (
	"testing"
	"testing/fstest"

	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-rebalancer/internal/config"
	"github.com/portfolio-rebalancer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQLStatements(t *testing.T) {
	content := `
-- comment only
CREATE TABLE a (
    id UInt64
) ENGINE = MergeTree ORDER BY id;

CREATE TABLE b (id UInt64) ENGINE = Memory;
SELECT 1`

	stmts := splitSQLStatements(content)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.NotContains(t, stmts[0], ";")
	assert.NotContains(t, stmts[0], "comment only")
	assert.Equal(t, "CREATE TABLE b (id UInt64) ENGINE = Memory", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}

func TestEmbeddedClickHouseMigrations(t *testing.T) {
	content, err := clickhouseMigrations.ReadFile("migrations/clickhouse/001_rebalance_history.sql")
	require.NoError(t, err)

	stmts := splitSQLStatements(string(content))
	require.NotEmpty(t, stmts)
	assert.Contains(t, stmts[0], "rebalance_history")
}

func setupClickHouse(t *testing.T) *ClickHouseDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := NewClickHouseDB(testContext(t), &config.ClickHouseConfig{
		Enabled:  true,
		Host:     "localhost",
		Port:     "9000",
		Database: "default",
		User:     "default",
	})
	if err != nil {
		t.Skipf("Skipping test - ClickHouse not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestClickHouseHistory_RecordIsIdempotent(t *testing.T) {
	ctx := testContext(t)
	db := setupClickHouse(t)

	require.NoError(t, RunClickHouseMigrations(ctx, db))
	require.NoError(t, db.Exec(ctx, "TRUNCATE TABLE rebalance_history"))

	history := NewClickHouseHistory(db)
	rec := &models.RebalanceRecord{
		ID:            1,
		PortfolioID:   42,
		Height:        200,
		EstimatedCost: 75_000,
		TokensTraded:  1,
		TotalFees:     55,
		Initiator:     common.HexToAddress("0x4000000000000000000000000000000000000004"),
		ValueBefore:   1000,
		ValueAfter:    945,
		DeviationBps:  5000,
	}
	require.NoError(t, history.Record(ctx, rec))
	require.NoError(t, history.Record(ctx, rec))

	records, err := history.ListByPortfolio(ctx, 42)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec, records[0])
}

func TestRunClickHouseMigrations_EmptyDirectory(t *testing.T) {
	db := setupClickHouse(t)

	fsys := fstest.MapFS{"migrations/README": {Data: []byte("none")}}
	require.NoError(t, runClickHouseMigrationsFS(testContext(t), db, fsys, "migrations"))
}
