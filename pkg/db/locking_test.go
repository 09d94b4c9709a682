package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestRowLockClausePerDialect(t *testing.T) {
	if got := rowLockClause("postgres"); got != " FOR UPDATE" {
		t.Fatalf("postgres lock clause: %q", got)
	}
	if got := rowLockClause("mysql"); got != " FOR UPDATE" {
		t.Fatalf("mysql lock clause: %q", got)
	}
	if got := rowLockClause("sqlite"); got != "" {
		t.Fatalf("sqlite lock clause: %q", got)
	}

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if got := RowLockClause(conn); got != "" {
		t.Fatalf("sqlite conn lock clause: %q", got)
	}
	if got := RowLockClause(nil); got != "" {
		t.Fatalf("nil conn lock clause: %q", got)
	}
}
