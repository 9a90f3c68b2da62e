package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"doc-parser/internal/logger"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Schema creates the two document tables. Each row holds one JSON document.
const Schema = `
CREATE TABLE IF NOT EXISTS teams (
	id  BIGSERIAL PRIMARY KEY,
	doc JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS problem_statements (
	id  TEXT PRIMARY KEY,
	doc JSONB NOT NULL
);`

type PostgresConfig struct {
	URL         string
	MaxConns    int32
	DialTimeout time.Duration
}

// PostgresSource reads team and problem-statement documents from JSONB
// columns.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// OpenPostgres builds the pool without dialing; the first query connects.
// A bad DSN is a configuration error and is returned as is.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresSource, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.DialTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.DialTimeout
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "doc-parser"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	logger.WithFields(logrus.Fields{
		"maxConns": pc.MaxConns,
	}).Info("Metadata store pool created")

	return &PostgresSource{pool: pool}, nil
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

func (s *PostgresSource) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return storeError("create schema", err)
	}
	return nil
}

func (s *PostgresSource) Close() {
	s.pool.Close()
}

func (s *PostgresSource) Teams(ctx context.Context) ([]TeamDoc, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM teams ORDER BY id`)
	if err != nil {
		return nil, storeError("query teams", err)
	}
	defer rows.Close()

	var docs []TeamDoc
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		var doc TeamDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			logger.WithError(err).Warn("Skipping malformed team document")
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("read teams", err)
	}
	return docs, nil
}

func (s *PostgresSource) ProblemStatements(ctx context.Context, ids []string) (map[string]ProblemStatement, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, doc FROM problem_statements WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, storeError("query problem statements", err)
	}
	defer rows.Close()

	out := make(map[string]ProblemStatement, len(ids))
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan problem statement: %w", err)
		}
		var ps ProblemStatement
		if err := json.Unmarshal(raw, &ps); err != nil {
			logger.WithFields(logrus.Fields{
				"id":    id,
				"error": err.Error(),
			}).Warn("Skipping malformed problem statement")
			continue
		}
		ps.ID = id
		out[id] = ps
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("read problem statements", err)
	}
	return out, nil
}

// storeError wraps connection-level failures with ErrGatewayUnavailable.
// SQL errors reported by the server (missing table, bad column) keep
// their own identity.
func storeError(op string, err error) error {
	if unreachable(err) {
		return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func unreachable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P covers shutdown and
		// "cannot connect now".
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr), errors.As(err, &netErr):
		return true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case pgconn.Timeout(err):
		return true
	}
	return false
}
