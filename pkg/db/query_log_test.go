package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

func newBufferedQueryLogger(slow time.Duration) (*queryLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf, Format: "json", Level: zerolog.DebugLevel})
	return newQueryLogger(logg, slow), &buf
}

func statement(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	ql, buf := newBufferedQueryLogger(100 * time.Millisecond)
	ctx := context.Background()

	ql.Trace(ctx, time.Now(), statement("SELECT 1"), nil)
	assert.Empty(t, buf.String(), "fast successful statements are not logged")

	ql.Trace(ctx, time.Now(), statement("SELECT * FROM orders WHERE id = 'x'"), gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "record not found is not a failure")

	ql.Trace(ctx, time.Now().Add(-time.Second), statement("UPDATE products SET total_quantity = total_quantity - 1"), nil)
	assert.Contains(t, buf.String(), "slow sql statement")
	assert.Contains(t, buf.String(), "total_quantity")

	buf.Reset()
	ql.Trace(ctx, time.Now(), statement("INSERT INTO payout_records"), errors.New("connection reset"))
	assert.Contains(t, buf.String(), "sql statement failed")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestQueryLoggerSilentMode(t *testing.T) {
	ql, buf := newBufferedQueryLogger(time.Millisecond)

	silent := ql.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), statement("SELECT 1"), errors.New("boom"))
	assert.Empty(t, buf.String())

	ql.Trace(context.Background(), time.Now().Add(-time.Second), statement("SELECT 1"), nil)
	assert.NotEmpty(t, buf.String(), "LogMode returns a copy")
}
