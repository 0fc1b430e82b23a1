package runtime

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// colorEnabled mirrors how a REPL decides whether to emit ANSI color:
// only when stdout is an actual terminal, never when piped (spec's
// ambient "pretty printer" section, grounded on the teacher's println
// builtin writing straight to stdout).
var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func colorize(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

// Pretty formats a Value as a single-line string, the read-eval-print
// loop's print step (spec §3.1 String() vs. this: String() is the plain
// un-colored printed form every Value must support; Pretty adds terminal
// color and humanized big numbers on top, for interactive use only).
func Pretty(v Value) string {
	if v == nil {
		v = TheNil
	}
	switch t := v.(type) {
	case *NilVal:
		return colorize("90", "nil")
	case *Bool:
		return colorize("33", t.String())
	case *Int:
		if t.Value > 999999 || t.Value < -999999 {
			return colorize("36", t.String()) + colorize("90", " ("+humanize.Comma(t.Value)+")")
		}
		return colorize("36", t.String())
	case *Float:
		return colorize("36", t.String())
	case *BigInteger, *Ratio, *BigDecimal:
		return colorize("36", t.String())
	case *Str:
		return colorize("32", fmt.Sprintf("%q", t.Value))
	case *Keyword:
		return colorize("35", t.String())
	case *Symbol:
		return colorize("34", t.String())
	case *List:
		return prettyColl(t.Items, "(", ")")
	case *Vector:
		return prettyColl(t.items(), "[", "]")
	case *Set:
		return prettyColl(t.items, "#{", "}")
	case MapLike:
		return prettyMap(t)
	default:
		return v.String()
	}
}

func prettyColl(items []Value, open, close string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = Pretty(it)
	}
	return open + strings.Join(parts, " ") + close
}

func prettyMap(m MapLike) string {
	type kv struct{ k, v Value }
	pairs := make([]kv, 0, m.Count())
	m.Each(func(k, v Value) bool {
		pairs = append(pairs, kv{k, v})
		return true
	})
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k.String() < pairs[j].k.String() })
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = Pretty(p.k) + " " + Pretty(p.v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// PrettyMultiline formats a Value as indented multi-line text for large
// collection values, the way a REPL spreads a deeply nested result
// across lines instead of one long one.
func PrettyMultiline(v Value) string { return prettyML(v, 0) }

func prettyML(v Value, indent int) string {
	pad := strings.Repeat("  ", indent)
	switch t := v.(type) {
	case *Vector:
		items := t.items()
		if len(items) == 0 {
			return pad + "[]"
		}
		var b strings.Builder
		b.WriteString(pad + "[\n")
		for i, it := range items {
			b.WriteString(prettyMLIndented(it, indent+1))
			if i < len(items)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(pad + "]")
		return b.String()
	case *List:
		if len(t.Items) == 0 {
			return pad + "()"
		}
		var b strings.Builder
		b.WriteString(pad + "(\n")
		for i, it := range t.Items {
			b.WriteString(prettyMLIndented(it, indent+1))
			if i < len(t.Items)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(pad + ")")
		return b.String()
	case MapLike:
		if t.Count() == 0 {
			return pad + "{}"
		}
		var b strings.Builder
		b.WriteString(pad + "{\n")
		i, n := 0, t.Count()
		t.Each(func(k, val Value) bool {
			b.WriteString(strings.Repeat("  ", indent+1) + Pretty(k) + " ")
			b.WriteString(strings.TrimPrefix(prettyML(val, indent+1), strings.Repeat("  ", indent+1)))
			if i < n-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
			i++
			return true
		})
		b.WriteString(pad + "}")
		return b.String()
	default:
		return pad + Pretty(v)
	}
}

func prettyMLIndented(v Value, indent int) string {
	switch v.(type) {
	case *Vector, *List:
		return prettyML(v, indent)
	case MapLike:
		return prettyML(v, indent)
	default:
		return strings.Repeat("  ", indent) + Pretty(v)
	}
}
