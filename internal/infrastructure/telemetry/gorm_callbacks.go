package telemetry

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

// registerFunc registers fn on one GORM processor, before or after gormName
type registerFunc func(db *gorm.DB, gormName, name string, fn func(*gorm.DB)) error

// gormOperation names a built-in GORM operation and how to hook into it
type gormOperation struct {
	name      string
	operation string
	before    registerFunc
	after     registerFunc
}

var gormOperations = []gormOperation{
	{
		"create", "INSERT",
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Create().Before(g).Register(n, fn) },
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Create().After(g).Register(n, fn) },
	},
	{
		"query", "SELECT",
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Query().Before(g).Register(n, fn) },
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Query().After(g).Register(n, fn) },
	},
	{
		"update", "UPDATE",
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Update().Before(g).Register(n, fn) },
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Update().After(g).Register(n, fn) },
	},
	{
		"delete", "DELETE",
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Delete().Before(g).Register(n, fn) },
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Delete().After(g).Register(n, fn) },
	},
	{
		"row", "",
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Row().Before(g).Register(n, fn) },
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Row().After(g).Register(n, fn) },
	},
	{
		"raw", "",
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Raw().Before(g).Register(n, fn) },
		func(db *gorm.DB, g, n string, fn func(*gorm.DB)) error { return db.Callback().Raw().After(g).Register(n, fn) },
	},
}

// registerAround registers before and after callbacks around every built-in GORM
// operation. after receives the SQL operation name, detected from the statement
// for Row and Raw.
func registerAround(db *gorm.DB, prefix string, before func(*gorm.DB), after func(db *gorm.DB, operation string)) error {
	for _, op := range gormOperations {
		gormName := "gorm:" + op.name
		if before != nil {
			if err := op.before(db, gormName, prefix+":before_"+op.name, before); err != nil {
				return err
			}
		}
		if after != nil {
			cb := func(db *gorm.DB) {
				operation := op.operation
				if operation == "" {
					operation = detectOperationType(db.Statement.SQL.String())
				}
				after(db, operation)
			}
			if err := op.after(db, gormName, prefix+":after_"+op.name, cb); err != nil {
				return err
			}
		}
	}
	return nil
}

// startTimeCallback stores the statement start time under key
func startTimeCallback(key any) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, key, time.Now())
	}
}

func elapsedSince(db *gorm.DB, key any) (time.Duration, bool) {
	if db.Statement.Context == nil {
		return 0, false
	}
	start, ok := db.Statement.Context.Value(key).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

func detectOperationType(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	switch {
	case strings.HasPrefix(sql, "SELECT"), strings.HasPrefix(sql, "WITH"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	default:
		return "OTHER"
	}
}

// isConditionalWrite reports an UPDATE or DELETE guarded by a WHERE clause
func isConditionalWrite(operation, sql string) bool {
	return (operation == "UPDATE" || operation == "DELETE") &&
		strings.Contains(strings.ToUpper(sql), " WHERE ")
}
