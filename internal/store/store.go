package store

import "context"

// Migration is a contract for migration
type Migration interface {
	Up(context.Context) error
	Rollback(context.Context) error
}
