// Package render provides human-readable value rendering shared by the
// signal payload rules and the watcher diff output.
package render

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Value renders v for inclusion in a signal payload. Strings pass through
// unchanged, scalars use their default formatting, and composite values are
// serialized as compact JSON so nested fields remain legible in log lines.
func Value(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return val
	case []byte:
		return string(val)
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, complex64, complex128:
		return fmt.Sprintf("%v", val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(encoded)
	}
}

// Join concatenates the renderings of args with no separator. The empty
// join is a compatibility contract with downstream log consumers and must
// not be changed to a delimited form.
func Join(args []any) string {
	var b strings.Builder
	for _, arg := range args {
		b.WriteString(Value(arg))
	}
	return b.String()
}
