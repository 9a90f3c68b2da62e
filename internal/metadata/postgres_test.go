package metadata

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestStoreError(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		wantUnavailable bool
	}{
		{
			name:            "missing table",
			err:             &pgconn.PgError{Code: "42P01", Message: `relation "teams" does not exist`},
			wantUnavailable: false,
		},
		{
			name:            "undefined column",
			err:             &pgconn.PgError{Code: "42703", Message: `column "doc" does not exist`},
			wantUnavailable: false,
		},
		{
			name:            "client side encode failure",
			err:             errors.New("failed to encode args[0]"),
			wantUnavailable: false,
		},
		{
			name:            "connection failure reported by server",
			err:             &pgconn.PgError{Code: "08006", Message: "connection failure"},
			wantUnavailable: true,
		},
		{
			name:            "server shutting down",
			err:             &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"},
			wantUnavailable: true,
		},
		{
			name:            "dial refused",
			err:             &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			wantUnavailable: true,
		},
		{
			name:            "deadline",
			err:             context.DeadlineExceeded,
			wantUnavailable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storeError("query teams", tt.err)

			assert.Equal(t, tt.wantUnavailable, errors.Is(err, ErrGatewayUnavailable))
			assert.Contains(t, err.Error(), "query teams")
			if !tt.wantUnavailable {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}
