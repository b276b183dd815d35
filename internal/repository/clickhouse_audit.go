package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	pkgch "TradeCore/pkg/clickhouse"
	applogger "TradeCore/pkg/logger"
)

// ClickHouseAudit implements AuditSink on ClickHouse. Both tables are
// append-only MergeTrees; there is no update or delete path by design of the
// audit trail.
type ClickHouseAudit struct {
	db             *sql.DB
	decisionsTable string
	outcomesTable  string
	l              *applogger.Logger
}

func NewClickHouseAudit(ch *pkgch.Client, decisionsTable, outcomesTable string) *ClickHouseAudit {
	return &ClickHouseAudit{db: ch.DB(), decisionsTable: decisionsTable, outcomesTable: outcomesTable}
}

// SetLogger injects a structured logger.
func (s *ClickHouseAudit) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseAudit) AppendDecision(ctx context.Context, r *models.FusionResult) error {
	if r == nil {
		return fmt.Errorf("decision is nil")
	}
	contributing, err := json.Marshal(r.Contributing)
	if err != nil {
		return fmt.Errorf("marshal contributing: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, final, confidence, reasoning, contributing) VALUES (?, ?, ?, ?, ?, ?)", s.decisionsTable)
	if _, err := s.db.ExecContext(ctx, q,
		r.Timestamp, r.Symbol, string(r.Final), r.Confidence, r.Reasoning, string(contributing),
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append_decision error",
				applogger.String("symbol", r.Symbol),
				applogger.Error(err))
		}
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

func (s *ClickHouseAudit) AppendOutcome(ctx context.Context, o *models.OrderOutcome) error {
	if o == nil {
		return fmt.Errorf("outcome is nil")
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, request_id, symbol, state, ticket, reason, attempts) VALUES (?, ?, ?, ?, ?, ?, ?)", s.outcomesTable)
	if _, err := s.db.ExecContext(ctx, q,
		o.Timestamp, o.RequestID, o.Symbol, string(o.State), o.Ticket, o.Reason, o.Attempts,
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append_outcome error",
				applogger.String("request_id", o.RequestID),
				applogger.Error(err))
		}
		return fmt.Errorf("append outcome: %w", err)
	}
	return nil
}

func (s *ClickHouseAudit) Decisions(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.FusionResult, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 1000
	}
	q := fmt.Sprintf(`
        SELECT ts, symbol, final, confidence, reasoning, contributing
        FROM %s
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
        LIMIT ?
    `, s.decisionsTable)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse decisions query error",
				applogger.String("symbol", symbol),
				applogger.Error(err))
		}
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	out := make([]models.FusionResult, 0, limit)
	for rows.Next() {
		var r models.FusionResult
		var final, contributing string
		if err := rows.Scan(&r.Timestamp, &r.Symbol, &final, &r.Confidence, &r.Reasoning, &contributing); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		r.Final = models.FinalSignal(final)
		if contributing != "" {
			if err := json.Unmarshal([]byte(contributing), &r.Contributing); err != nil && s.l != nil {
				s.l.Warn("malformed contributing payload", applogger.String("symbol", r.Symbol))
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse decisions ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return out, nil
}

func (s *ClickHouseAudit) Outcomes(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.OrderOutcome, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := fmt.Sprintf(`
        SELECT ts, request_id, symbol, state, ticket, reason, attempts
        FROM %s
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
        LIMIT ?
    `, s.outcomesTable)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse outcomes query error",
				applogger.String("symbol", symbol),
				applogger.Error(err))
		}
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]models.OrderOutcome, 0, limit)
	for rows.Next() {
		var o models.OrderOutcome
		var state string
		if err := rows.Scan(&o.Timestamp, &o.RequestID, &o.Symbol, &state, &o.Ticket, &o.Reason, &o.Attempts); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.State = models.OutcomeState(state)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseAudit) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAudit) Close() error {
	return nil // pool owned by pkg client
}

var _ domrepo.AuditSink = (*ClickHouseAudit)(nil)
