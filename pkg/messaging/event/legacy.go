package event

import (
	"fmt"
	"strconv"
	"strings"
)

// LegacyAction is what a plain-text user notification asks the consumer to do.
type LegacyAction int

const (
	LegacyIgnore LegacyAction = iota
	LegacyDeleteUser
	LegacyEvictAll
)

// ScanLegacy interprets payloads such as "user.deleted(42)" emitted before
// the JSON envelope existed. For deletions the id is read between the last
// '(' and the last ')'.
func ScanLegacy(payload string) (LegacyAction, int64, error) {
	switch {
	case strings.Contains(payload, "user.deleted"):
		start := strings.LastIndexByte(payload, '(') + 1
		end := strings.LastIndexByte(payload, ')')
		if start <= 0 || end <= start {
			return LegacyDeleteUser, 0, fmt.Errorf("no user id in %q", payload)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(payload[start:end]), 10, 64)
		if err != nil {
			return LegacyDeleteUser, 0, fmt.Errorf("invalid user id in %q: %w", payload, err)
		}
		return LegacyDeleteUser, id, nil
	case strings.Contains(payload, "user.updated"), strings.Contains(payload, "user.created"):
		return LegacyEvictAll, 0, nil
	}
	return LegacyIgnore, 0, nil
}
