package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse interprets a single option-domain string per the grammar:
//
//	"range N"            -> IntRange(0, N, 1)
//	"range A B"           -> IntRange(A, B, 1)
//	"range A B S"         -> IntRange(A, B, S)
//	"seq_str W..."        -> Seq of strings
//	"seq_int N..."        -> Seq of ints
//	"seq_float F..."      -> Seq of floats
//	"str S" / "int N" / "float F" -> Singleton
//	"none"                -> Singleton{Kind:"none"}
//
// A bare token that is not one of these keywords is treated as "str" if it
// fails to parse as a number, "int" if it parses as an integer, and
// "float" if it parses as a float but not an integer.
func Parse(tok string) (Domain, error) {
	fields := strings.Fields(tok)
	if len(fields) == 0 {
		return nil, fmt.Errorf("domain: empty option string")
	}

	switch fields[0] {
	case "range":
		return parseRange(fields[1:])
	case "seq_str":
		return parseSeq("str", fields[1:])
	case "seq_int":
		return parseSeq("int", fields[1:])
	case "seq_float":
		return parseSeq("float", fields[1:])
	case "str":
		if len(fields) != 2 {
			return nil, fmt.Errorf("domain: %q requires exactly one value", "str")
		}
		return &Singleton{Kind: "str", Value: fields[1]}, nil
	case "int":
		if len(fields) != 2 {
			return nil, fmt.Errorf("domain: %q requires exactly one value", "int")
		}
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("domain: %q: %w", tok, err)
		}
		return &Singleton{Kind: "int", Value: n}, nil
	case "float":
		if len(fields) != 2 {
			return nil, fmt.Errorf("domain: %q requires exactly one value", "float")
		}
		f, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("domain: %q: %w", tok, err)
		}
		return &Singleton{Kind: "float", Value: f}, nil
	case "none":
		if len(fields) != 1 {
			return nil, fmt.Errorf("domain: %q takes no value", "none")
		}
		return &Singleton{Kind: "none", Value: nil}, nil
	default:
		return parseBare(tok)
	}
}

func parseRange(args []string) (Domain, error) {
	switch len(args) {
	case 1:
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("domain: range: %w", err)
		}
		return NewIntRange(0, n, 1)
	case 2:
		a, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("domain: range: %w", err)
		}
		b, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("domain: range: %w", err)
		}
		return NewIntRange(a, b, 1)
	case 3:
		a, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("domain: range: %w", err)
		}
		b, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("domain: range: %w", err)
		}
		s, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("domain: range: %w", err)
		}
		return NewIntRange(a, b, s)
	default:
		return nil, fmt.Errorf("domain: range takes 1-3 arguments, got %d", len(args))
	}
}

func parseSeq(kind string, args []string) (Domain, error) {
	values := make([]Value, len(args))
	for i, a := range args {
		switch kind {
		case "str":
			values[i] = a
		case "int":
			n, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("domain: seq_int: %w", err)
			}
			values[i] = n
		case "float":
			f, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, fmt.Errorf("domain: seq_float: %w", err)
			}
			values[i] = f
		}
	}
	return NewSeq(kind, values)
}

func parseBare(tok string) (Domain, error) {
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return &Singleton{Kind: "int", Value: n}, nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return &Singleton{Kind: "float", Value: f}, nil
	}
	return &Singleton{Kind: "str", Value: tok}, nil
}
