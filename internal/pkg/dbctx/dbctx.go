// Package dbctx carries the ambient unit-of-work through use cases and
// repositories so a use case opens exactly one transaction and every
// repository call inside it participates in that same transaction.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a context.Context with the *gorm.DB that should be used
// for the current call: either a live transaction, or (outside of a use
// case's transaction) the base connection.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background builds a Context bound to db with context.Background(),
// useful for fire-and-forget maintenance calls outside an HTTP request.
func Background(db *gorm.DB) Context {
	return Context{Ctx: context.Background(), Tx: db}
}

// With returns a Context reusing dc's transaction but a different
// context.Context, typically to attach a deadline to one call.
func (dc Context) With(ctx context.Context) Context {
	return Context{Ctx: ctx, Tx: dc.Tx}
}
