//go:build sqlite

package main

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

func configureDB(db *gorm.DB) error {
	// sqlite ships with foreign keys off
	return db.Exec("PRAGMA foreign_keys = ON").Error
}
