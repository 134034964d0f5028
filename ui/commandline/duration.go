// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"time"
)

// FormatDuration prints d in its largest unit with at most two decimal places, e.g. "1.50s" or "12.35ms".
func FormatDuration(d time.Duration) string {
	units := []struct {
		size time.Duration
		name string
	}{
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
		{time.Millisecond, "ms"},
		{time.Microsecond, "µs"},
	}
	abs := d.Abs()
	for _, unit := range units {
		if abs >= unit.size {
			return fmt.Sprintf("%.2f%s", float64(d)/float64(unit.size), unit.name)
		}
	}
	return d.String()
}
