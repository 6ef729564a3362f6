package cli

import (
	"fmt"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/tarsiflow/tarsiflow/internal/graph"
	"github.com/tarsiflow/tarsiflow/internal/value"
)

// printer formats currency-sized numbers with digit grouping for the text
// output ("2,500,000" rather than "2.5e+06").
var printer = message.NewPrinter(language.English)

// renderValue renders a field value for text output. Vectors print length
// and sum only - simulation vectors run to thousands of elements.
func renderValue(v value.Value) string {
	switch x := v.(type) {
	case value.Scalar:
		return printer.Sprintf("%v", number.Decimal(float64(x)))
	case value.Vector:
		return printer.Sprintf("vector(len=%d, sum=%v)", len(x), number.Decimal(x.Sum()))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// renderDelta renders a delta's entries in sorted field order, one
// indented line per changed field.
func renderDelta(delta graph.Delta) []string {
	if len(delta) == 0 {
		return []string{"  (no changes)"}
	}
	names := make([]string, 0, len(delta))
	for name := range delta {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("  %s = %s", name, renderValue(delta[name])))
	}
	return lines
}
