package client

import (
	"context"
	"time"
)

// noopContext stands in for the caller's kbridge.Context on RPCs with no
// upstream request to reply to, such as the opportunistic readahead fetch
// fired from Read. It carries no deadline and no cancellation.
type noopContext struct{}

func (noopContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (noopContext) Done() <-chan struct{}       { return nil }
func (noopContext) Err() error                  { return nil }
func (noopContext) Value(key any) any           { return nil }

var _ context.Context = noopContext{}
