package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/uptrace/bun"
)

// queryLogger logs every statement at debug level and failures at warn.
type queryLogger struct {
	logger *log.Logger
}

var _ bun.QueryHook = (*queryLogger)(nil)

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.logger.Warn("query failed", "op", event.Operation(), "duration", elapsed, "query", event.Query, "err", event.Err)
		return
	}
	h.logger.Debug("query", "op", event.Operation(), "duration", elapsed, "query", event.Query)
}
