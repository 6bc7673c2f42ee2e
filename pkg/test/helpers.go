package test

import (
	"database/sql"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"identityapp/internal/adapter/database/sqlite"
)

// InitTestDB opens a migrated in-memory sqlite database. The pool is pinned
// to one connection because every :memory: connection is its own database.
func InitTestDB() *sqlite.DB {
	db, err := sql.Open("sqlite3", ":memory:")

	if err != nil {
		log.Fatal(err)
	}

	db.SetMaxOpenConns(1)

	if err := sqlite.RunMigrations(db); err != nil {
		log.Fatal(err)
	}

	return sqlite.Wrap(db)
}
