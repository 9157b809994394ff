//go:build integration

package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/attendsync/attendance-monitor/internal/conf"
)

func TestMySQLStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("attendance"),
		tcmysql.WithUsername("attendance"),
		tcmysql.WithPassword("attendance"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	ds, err := New(conf.DatabaseSettings{
		Type: conf.DatabaseMySQL,
		MySQL: conf.MySQLSettings{
			Host:         host,
			Port:         port.Int(),
			Username:     "attendance",
			Password:     "attendance",
			Database:     "attendance",
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		},
		ReconnectAttempts:   3,
		ReconnectDelay:      time.Second,
		FingerprintCacheTTL: time.Minute,
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	rec := sampleRecord(day(2024, 3, 1), "EMP12345")
	require.NoError(t, ds.Insert(ctx, rec))
	require.ErrorIs(t, ds.Insert(ctx, sampleRecord(day(2024, 3, 1), "EMP12345")), ErrDuplicateKey)

	got, err := ds.FindByKey(ctx, day(2024, 3, 1), "EMP12345")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", got.PunchDate.Format(time.DateOnly))
	assert.Equal(t, clock(9, 5), got.PunchInTime)
	assert.Equal(t, "7.92", got.HoursWorked.Decimal.StringFixed(2))

	require.NoError(t, ds.MarkFileReconciled(ctx, &ProcessedFile{ContentHash: "abc", FileName: "a.xlsx"}))
	require.NoError(t, ds.MarkFileReconciled(ctx, &ProcessedFile{ContentHash: "abc", FileName: "a.xlsx"}))
	done, err := ds.FileFullyReconciled(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, ds.EnsureConnected(ctx))
}
