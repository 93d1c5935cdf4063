package google

import (
	"fmt"
	"strings"
)

// valuesToStrings converts a values matrix as returned by the Sheets API
// into rows of strings. Trailing empty cells are omitted by the API, so
// rows may have different lengths.
func valuesToStrings(values [][]interface{}) [][]string {
	if len(values) == 0 {
		return nil
	}
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch t := v.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = t
		default:
			out[i] = fmt.Sprint(t)
		}
	}
	return out
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
