// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ledger

import (
	"context"
	"time"

	"github.com/clustercockpit-labs/dcrunner/pkg/dclog"
)

type ctxKey string

const beginKey ctxKey = "begin"

// queryHooks satisfies sqlhooks.Hooks, logging any ledger query that
// takes longer than 50ms.
type queryHooks struct{}

func (h *queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, beginKey, time.Now()), nil
}

func (h *queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin, _ := ctx.Value(beginKey).(time.Time)
	if elapsed := time.Since(begin); elapsed > 50*time.Millisecond {
		dclog.Warnf("ledger: slow query (%s): %s", elapsed, query)
	}
	return ctx, nil
}
