package db

import (
	"strings"

	"gorm.io/gorm"
)

// RowLockClause returns the SELECT suffix that holds the matched rows
// for the rest of the transaction. Read-decide-write sequences under
// read committed need it so two writers cannot both act on the same
// stale read. sqlite has a single writer and rejects the syntax, so it
// gets none.
func RowLockClause(conn *gorm.DB) string {
	if conn == nil {
		return ""
	}
	return rowLockClause(conn.Dialector.Name())
}

func rowLockClause(dialect string) string {
	if strings.EqualFold(dialect, "sqlite") {
		return ""
	}
	return " FOR UPDATE"
}
