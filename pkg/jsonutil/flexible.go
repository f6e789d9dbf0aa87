// Package jsonutil decodes loosely typed values sent by the external worker,
// which may encode numbers as strings and lists as comma-separated text.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, accepting numbers
// and booleans. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// FlexibleFloat accepts a JSON number or a numeric string. Null/empty yields 0.
func FlexibleFloat(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(FlexibleStringValue(raw))
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

// FlexibleInt is FlexibleFloat truncated to an int.
func FlexibleInt(raw json.RawMessage) (int, error) {
	f, err := FlexibleFloat(raw)
	return int(f), err
}

// FlexibleStringSlice accepts a JSON array of scalars or a comma-separated string.
// Blank entries are dropped.
func FlexibleStringSlice(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}
	}

	var items []json.RawMessage
	var parts []string
	if err := json.Unmarshal(raw, &items); err == nil {
		for _, item := range items {
			parts = append(parts, FlexibleStringValue(item))
		}
	} else {
		parts = strings.Split(FlexibleStringValue(raw), ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
