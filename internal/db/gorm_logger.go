package db

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/storagekit/storagekit/internal/logging"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger forwards gorm's messages to the structured logger. Statements
// are reduced to operation and table; parameters are never logged.
type gormLogger struct {
	l     logging.Logger
	level logger.LogLevel
}

func newGormLogger(l logging.Logger, lvl logger.LogLevel) *gormLogger {
	return &gormLogger{l: l, level: lvl}
}

func (g *gormLogger) LogMode(l logger.LogLevel) logger.Interface {
	c := *g
	c.level = l
	return &c
}

func (g *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if g.level >= logger.Info {
		g.l.Info("gorm", "msg", msg, "args", data)
	}
}

func (g *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if g.level >= logger.Warn {
		g.l.Error("gorm_warn", "msg", msg, "args", data)
	}
}

func (g *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if g.level >= logger.Error {
		g.l.Error("gorm_error", "msg", msg, "args", data)
	}
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	sql, rows := fc()
	op, table := summarizeSQL(sql)
	fields := []any{
		"op", op,
		"table", table,
		"rows", rows,
		"durationMs", float64(time.Since(begin)) / 1e6,
		"caller", callerFileLine(),
	}
	switch {
	case err != nil && errors.Is(err, gorm.ErrRecordNotFound):
		if g.level >= logger.Info {
			g.l.Debug("gorm_sql", append(fields, "notFound", true)...)
		}
	case err != nil:
		if g.level >= logger.Error {
			g.l.Error("gorm_sql", append(fields, "error", err.Error())...)
		}
	case g.level >= logger.Info:
		g.l.Debug("gorm_sql", fields...)
	}
}

// callerFileLine finds the first frame outside gorm.
func callerFileLine() string {
	for i := 2; i < 12; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if !strings.Contains(file, "gorm.io") {
			return file + ":" + strconv.Itoa(line)
		}
	}
	return ""
}

// summarizeSQL reduces a statement to e.g. ("INSERT", "audit_entries").
func summarizeSQL(sql string) (op, table string) {
	q := strings.ToUpper(strings.Join(strings.Fields(sql), " "))
	if q == "" {
		return "", ""
	}
	op, _, _ = strings.Cut(q, " ")
	if ws := strings.Fields(tableClause(q)); len(ws) > 0 {
		table = strings.Trim(ws[0], "`\"")
	}
	return op, strings.ToLower(table)
}

// tableClause returns q starting at the table name.
func tableClause(q string) string {
	for _, lead := range []string{"UPDATE ", "INSERT INTO ", "DELETE FROM ", "CREATE TABLE "} {
		if strings.HasPrefix(q, lead) {
			return q[len(lead):]
		}
	}
	for _, sep := range []string{" FROM ", " INTO "} {
		if _, after, ok := strings.Cut(q, sep); ok {
			return after
		}
	}
	return q
}
