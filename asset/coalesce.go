// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package asset

import (
	"fmt"

	"golang.org/x/sync/singleflight"
)

// coalescer collapses concurrent first-acquire calls for the same UUID
// into a single in-flight scheduleLoad, so a resource never gets more
// than one load job even when many goroutines acquire it at once.
type coalescer struct {
	group singleflight.Group
}

func (c *coalescer) do(id UUID, fn func() (interface{}, error)) (interface{}, error, bool) {
	return c.group.Do(fmt.Sprintf("%x", uint64(id)), fn)
}
