package app

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bft-labs/feedrelay/internal/domain"
)

// Lookup returns the value of key in fields, trying the stringified code,
// then KEY_<NAME>, then <NAME>. The first present form wins, even if its
// value is falsy.
func Lookup(fields domain.Fields, key domain.Key) (any, bool) {
	for _, form := range key.Forms() {
		if v, ok := fields[form]; ok {
			return v, true
		}
	}
	return nil, false
}

// toInt converts a decoded field value to an int. Strings must hold a
// base-10 integer; floats must be integral.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return toInt(f)
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// truthy applies the device protocol's notion of a set flag: false, zero,
// the empty string and nil are unset; everything else is set.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	default:
		if n, ok := toInt(v); ok {
			return n != 0
		}
		return true
	}
}
