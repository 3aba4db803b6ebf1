/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recorder

import (
	"context"
	"time"
)

// RetryPolicy bounds how a recorder reacts to transient stream failures:
// a capture is attempted Retries+1 times with a fixed Wait between attempts.
// The policy travels with the call so retry behaviour is part of the
// operation's contract.
type RetryPolicy struct {
	Retries int
	Wait    time.Duration
}

// Attempts is the total number of tries including the first.
func (p RetryPolicy) Attempts() int {
	if p.Retries < 0 {
		return 1
	}
	return p.Retries + 1
}

// sleep waits out the policy's backoff, returning early on context cancel.
func (p RetryPolicy) sleep(ctx context.Context) error {
	if p.Wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Wait):
		return nil
	}
}
