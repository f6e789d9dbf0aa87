// Package sql screens user-supplied filter values before they reach list queries.
// Values are always bound as parameters; screening exists to surface probing
// attempts to the security audit log.
package sql

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a filter value.
type InjectionCheckResult struct {
	ParamName   string
	ParamValue  string
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckValue returns a result when libinjection recognizes a SQL injection
// pattern in value, and nil otherwise.
func CheckValue(paramName, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		ParamName:   paramName,
		ParamValue:  value,
		Fingerprint: string(fingerprint),
	}
}

// CheckFilters checks every filter value and returns the flagged ones ordered by name.
func CheckFilters(filters map[string]string) []*InjectionCheckResult {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []*InjectionCheckResult
	for _, name := range names {
		if r := CheckValue(name, filters[name]); r != nil {
			results = append(results, r)
		}
	}
	return results
}
