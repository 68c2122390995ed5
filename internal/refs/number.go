package refs

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToInt64 coerces the numeric shapes produced by YAML and JSON decoders, as
// well as decimal strings used for map keys, to an int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}

		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}

		return int64(n), true
	case json.Number:
		i, err := n.Int64()

		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)

		return i, err == nil
	default:
		return 0, false
	}
}

// FormatID renders a chart id the way metadata mappings key it.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
