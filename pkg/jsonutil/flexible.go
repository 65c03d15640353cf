package jsonutil

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// IsNull reports whether raw is absent or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// FlexibleStringValue converts a json.RawMessage to a string, handling EPD
// producers that emit numbers or booleans where a string is expected (versions,
// years, levels, internal IDs). Numbers keep their literal text so large
// integers do not lose precision. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if IsNull(raw) {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var numVal json.Number
	if err := dec.Decode(&numVal); err == nil {
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	// Objects and arrays: return raw representation
	return string(raw)
}

// FlexibleString is FlexibleStringValue for nullable columns: nil when the
// value is absent, null, or renders as an empty string.
func FlexibleString(raw json.RawMessage) *string {
	s := FlexibleStringValue(raw)
	if s == "" {
		return nil
	}
	return &s
}

// FlexibleBool accepts true/false literals and their string forms.
func FlexibleBool(raw json.RawMessage) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(FlexibleStringValue(raw)))
	return err == nil && b
}
