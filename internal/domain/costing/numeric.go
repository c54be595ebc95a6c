package costing

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// fieldAliases lists the keys tried, in order, when a record stands in for a number.
var fieldAliases = map[string][]string{
	"sales_price":    {"sales_price", "price"},
	"purchase_price": {"purchase_price", "unit_cost", "price"},
	"unit_cost":      {"unit_cost", "cost", "price"},
	"price":          {"price", "unit_price"},
	"unit_price":     {"unit_price", "price"},
	"quantity":       {"quantity", "qty"},
	"amount":         {"amount", "total_amount", "total"},
	"total_amount":   {"total_amount", "amount", "total"},
}

var defaultFields = []string{"value", "amount", "price", "unit_cost", "quantity"}

var (
	leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)([eE][+-]?\d+)?`)
	anyNumber     = regexp.MustCompile(`-?\d+(\.\d+)?`)
)

// EnsureNumeric coerces loosely shaped values into a decimal.
//
// nil becomes zero, numbers pass through and strings are parsed from their
// leading numeric prefix. A map is searched for the aliases of fieldKey first,
// then the first numeric substring of its JSON form is used. Anything else is zero.
func EnsureNumeric(value any, fieldKey ...string) decimal.Decimal {
	key := ""
	if len(fieldKey) > 0 {
		key = fieldKey[0]
	}

	switch v := value.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		return *v
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case json.Number:
		return parseLeading(v.String())
	case string:
		return parseLeading(v)
	case *string:
		if v == nil {
			return decimal.Zero
		}
		return parseLeading(*v)
	case bool:
		return decimal.Zero
	case map[string]any:
		return fromRecord(v, key)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return decimal.Zero
	}
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err == nil {
		return fromRecord(record, key)
	}
	return firstNumber(string(raw))
}

func fromRecord(record map[string]any, key string) decimal.Decimal {
	fields, ok := fieldAliases[key]
	if !ok {
		fields = defaultFields
		if key != "" {
			fields = append([]string{key}, defaultFields...)
		}
	}
	for _, f := range fields {
		if v, ok := record[f]; ok && v != nil {
			return EnsureNumeric(v, f)
		}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return decimal.Zero
	}
	return firstNumber(string(raw))
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func parseLeading(s string) decimal.Decimal {
	match := leadingNumber.FindString(strings.TrimSpace(s))
	if match == "" {
		return decimal.Zero
	}
	match = strings.TrimPrefix(match, "+")
	switch {
	case strings.HasPrefix(match, "."):
		match = "0" + match
	case strings.HasPrefix(match, "-."):
		match = "-0" + match[1:]
	}
	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func firstNumber(s string) decimal.Decimal {
	match := anyNumber.FindString(s)
	if match == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero
	}
	return d
}
