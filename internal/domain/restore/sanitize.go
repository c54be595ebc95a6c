package restore

import (
	"encoding/json"
	"regexp"
	"strconv"

	"factoryledger/internal/core/id"
)

// Row is one backup record keyed by column name.
type Row = map[string]any

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidColumn reports whether name is safe to use as an unquoted identifier.
func ValidColumn(name string) bool {
	return columnPattern.MatchString(name)
}

// Sanitize returns a copy of row ready for insert and the columns it dropped.
func Sanitize(t Table, row Row) (Row, []string) {
	out := make(Row, len(row))
	var dropped []string

	for col, v := range row {
		if !ValidColumn(col) {
			dropped = append(dropped, col)
			continue
		}
		out[col] = normalize(v)
	}

	for _, col := range t.Computed {
		if _, ok := out[col]; ok {
			delete(out, col)
			dropped = append(dropped, col)
		}
	}

	for _, col := range t.UUIDColumns {
		v, ok := out[col]
		if !ok || v == nil {
			continue
		}
		s, isString := v.(string)
		if isString && (s == id.SingletonKey || id.IsUUID(s)) {
			continue
		}
		if col == "id" {
			delete(out, col)
			dropped = append(dropped, col)
			continue
		}
		out[col] = nil
	}

	return out, dropped
}

// normalize turns JSON numbers into decimal strings so they bind to both
// integer and numeric columns without float rounding.
func normalize(v any) any {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	return v
}
