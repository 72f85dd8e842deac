//go:build !sqlite

package main

import (
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newDialector(dsn string) gorm.Dialector {
	return mysql.Open(withDefaultParams(dsn))
}

// withDefaultParams appends the connection parameters gorm needs, parseTime
// in particular, unless the DSN already carries its own.
func withDefaultParams(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?charset=utf8mb4&parseTime=True&loc=Local"
}

func configureDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(8)
	sqlDB.SetMaxOpenConns(64)
	// recycle connections before intermediaries time them out
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}
