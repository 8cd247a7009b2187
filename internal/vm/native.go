package vm

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/kievzenit/minic/internal/bytecode"
)

// Native is a host function bound to an extern declaration.
type Native func(args []bytecode.Value) (bytecode.Value, error)

var errMissingArgument = errors.New("format needs more arguments than were passed")

// Printf returns a C style printf writing to w. It understands flags, width,
// precision and the l/ll/h/z length modifiers, and returns the number of
// bytes written.
func Printf(w io.Writer) Native {
	return func(args []bytecode.Value) (bytecode.Value, error) {
		if len(args) == 0 || args[0].Kind != bytecode.StringKind {
			return bytecode.Value{}, errors.New("first argument must be a format string")
		}

		text, err := FormatC(args[0].Str, args[1:])
		if err != nil {
			return bytecode.Value{}, err
		}

		n, err := io.WriteString(w, text)
		if err != nil {
			return bytecode.Value{}, err
		}
		return bytecode.IntValue(int64(n)), nil
	}
}

// FormatC renders a C format string against args.
func FormatC(format string, args []bytecode.Value) (string, error) {
	var sb strings.Builder
	next := 0

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}

		start := i
		i++
		if i < len(format) && format[i] == '%' {
			sb.WriteByte('%')
			continue
		}

		for i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0 {
			i++
		}
		for i < len(format) && isDigit(format[i]) {
			i++
		}
		hasPrecision := false
		if i < len(format) && format[i] == '.' {
			hasPrecision = true
			i++
			for i < len(format) && isDigit(format[i]) {
				i++
			}
		}
		spec := format[start:i]

		for i < len(format) && strings.IndexByte("hlLqjzt", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			sb.WriteString(format[start:])
			break
		}

		verb := format[i]
		if strings.IndexByte("diucsfFeEgGxXo", verb) < 0 {
			sb.WriteString(format[start : i+1])
			continue
		}

		if next >= len(args) {
			return "", errMissingArgument
		}
		arg := args[next]
		next++

		formatted, err := formatOne(spec, hasPrecision, verb, arg)
		if err != nil {
			return "", err
		}
		sb.WriteString(formatted)
	}

	return sb.String(), nil
}

func formatOne(spec string, hasPrecision bool, verb byte, arg bytecode.Value) (string, error) {
	switch verb {
	case 'd', 'i':
		return fmt.Sprintf(spec+"d", asInt(arg)), nil
	case 'u':
		return fmt.Sprintf(spec+"d", uint64(asInt(arg))), nil
	case 'x', 'X', 'o':
		return fmt.Sprintf(spec+string(verb), uint64(asInt(arg))), nil
	case 'c':
		return fmt.Sprintf(spec+"c", rune(asInt(arg))), nil
	case 's':
		if arg.Kind != bytecode.StringKind {
			return fmt.Sprintf(spec+"s", arg.String()), nil
		}
		return fmt.Sprintf(spec+"s", arg.Str), nil
	case 'f', 'F', 'e', 'E', 'g', 'G':
		if special, ok := nonFinite(arg.AsFloat(), verb); ok {
			width, _, _ := strings.Cut(spec, ".")
			return fmt.Sprintf(width+"s", special), nil
		}
	}

	switch verb {
	case 'g', 'G':
		if !hasPrecision {
			spec += ".6"
		}
		return fmt.Sprintf(spec+string(verb), arg.AsFloat()), nil
	case 'F':
		return fmt.Sprintf(spec+"f", arg.AsFloat()), nil
	default:
		return fmt.Sprintf(spec+string(verb), arg.AsFloat()), nil
	}
}

// nonFinite spells infinities and NaN the way C does.
func nonFinite(f float64, verb byte) (string, bool) {
	var text string
	switch {
	case math.IsNaN(f):
		text = "nan"
	case math.IsInf(f, 1):
		text = "inf"
	case math.IsInf(f, -1):
		text = "-inf"
	default:
		return "", false
	}
	if verb >= 'A' && verb <= 'Z' {
		text = strings.ToUpper(text)
	}
	return text, true
}

func asInt(v bytecode.Value) int64 {
	if v.Kind == bytecode.FloatKind {
		return int64(v.Float)
	}
	return v.Int
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
