package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zoneColumns = []string{"id", "name", "geometry", "parent_zone", "sub_zones", "created_at"}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "zones", zoneColumns, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zones"}, zoneColumns).WillReturnResult(2)

	rows := [][]any{
		{"z-1", "ward-1", []byte{0x01}, nil, "[]", "2026-04-01"},
		{"z-2", "ward-2", []byte{0x01}, "ward-1", "[]", "2026-04-01"},
	}
	n, err := CopyFrom(context.Background(), mock, "zones", zoneColumns, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"zones"}, zoneColumns).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"z-1", "ward-1", []byte{0x01}, nil, "[]", "2026-04-01"}}
	_, err = CopyFrom(context.Background(), mock, "zones", zoneColumns, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO zones")
	assert.NoError(t, mock.ExpectationsWereMet())
}
