// Package models contains the persistent types of the server and a
// repository type for each, in the style of NewActors(db).Find(...).
package models

import (
	"golang.org/x/exp/slog"
	"gorm.io/gorm"
)

// Env is the environment shared by request handlers.
type Env struct {
	// DB is the database connection.
	DB     *gorm.DB
	Logger *slog.Logger
}

func (e *Env) Log() *slog.Logger {
	return e.Logger
}

// AllTables returns a slice of all tables in the database.
func AllTables() []interface{} {
	return []interface{}{
		&Actor{}, &ActorAttribute{},
		&Account{},
		&Instance{},
		&Relationship{},
		&RelationshipSeveranceEvent{}, &SeveredRelationship{},
		&Status{}, &StatusPoll{}, &StatusPollOption{},
	}
}
