// Package invalidation defines the change events that retire cached results
// for a warehouse table.
package invalidation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Event announces that rows of Table changed at TS.
type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Table   string    `json:"table"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

var tableName = regexp.MustCompile(`^[A-Za-z0-9_$]+(\.[A-Za-z0-9_$]+){0,2}$`)

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete", "truncate":
	default:
		return fmt.Errorf("op must be insert|update|delete|truncate")
	}
	t := strings.TrimSpace(e.Table)
	if t == "" {
		return fmt.Errorf("table is required")
	}
	if !tableName.MatchString(t) {
		return fmt.Errorf("table %q is not a qualified identifier", e.Table)
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
