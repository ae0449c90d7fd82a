package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-rebalancer/internal/config"
	apperrors "github.com/portfolio-rebalancer/internal/errors"
	"github.com/portfolio-rebalancer/internal/models"
)

// ClickHouseDB wraps the ClickHouse connection
type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(ctx context.Context, cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     5,
		MaxIdleConns:     2,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Ping checks if the database is reachable
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.conn.Ping(ctx)
}

// Exec executes a query without returning rows
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...interface{}) error {
	return db.conn.Exec(ctx, query, args...)
}

// ClickHouseHistory mirrors committed rebalance records into ClickHouse.
// The table is a ReplacingMergeTree keyed by (portfolio_id, id), so mirroring
// the same record twice collapses to one row.
type ClickHouseHistory struct {
	db *ClickHouseDB
}

// NewClickHouseHistory creates a history mirror
func NewClickHouseHistory(db *ClickHouseDB) *ClickHouseHistory {
	return &ClickHouseHistory{db: db}
}

// Record inserts one rebalance record
func (h *ClickHouseHistory) Record(ctx context.Context, rec *models.RebalanceRecord) error {
	batch, err := h.db.Conn().PrepareBatch(ctx, `
		INSERT INTO rebalance_history (
			id, portfolio_id, height, estimated_cost, tokens_traded,
			total_fees, initiator, value_before, value_after, deviation_bps
		)`)
	if err != nil {
		return apperrors.NewDatabaseError("prepare history batch", err)
	}

	if err := batch.Append(
		rec.ID,
		rec.PortfolioID,
		rec.Height,
		rec.EstimatedCost,
		uint32(rec.TokensTraded), // #nosec G115 - bounded by the trade batch limit
		rec.TotalFees,
		strings.ToLower(rec.Initiator.Hex()),
		rec.ValueBefore,
		rec.ValueAfter,
		rec.DeviationBps,
	); err != nil {
		return apperrors.NewDatabaseError("append history row", err)
	}

	if err := batch.Send(); err != nil {
		return apperrors.NewDatabaseError("send history batch", err)
	}
	return nil
}

// ListByPortfolio returns mirrored records of a portfolio in id order
func (h *ClickHouseHistory) ListByPortfolio(ctx context.Context, portfolioID uint64) ([]*models.RebalanceRecord, error) {
	rows, err := h.db.Conn().Query(ctx, `
		SELECT id, portfolio_id, height, estimated_cost, tokens_traded,
		       total_fees, initiator, value_before, value_after, deviation_bps
		FROM rebalance_history FINAL
		WHERE portfolio_id = ?
		ORDER BY id
	`, portfolioID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("query history", err)
	}
	defer rows.Close()

	var records []*models.RebalanceRecord
	for rows.Next() {
		var (
			rec       models.RebalanceRecord
			traded    uint32
			initiator string
		)
		if err := rows.Scan(
			&rec.ID, &rec.PortfolioID, &rec.Height, &rec.EstimatedCost, &traded,
			&rec.TotalFees, &initiator, &rec.ValueBefore, &rec.ValueAfter, &rec.DeviationBps,
		); err != nil {
			return nil, apperrors.NewDatabaseError("scan history", err)
		}
		rec.TokensTraded = int(traded)
		rec.Initiator = common.HexToAddress(initiator)
		records = append(records, &rec)
	}

	return records, rows.Err()
}
