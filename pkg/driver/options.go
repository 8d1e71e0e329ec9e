package driver

import (
	"fmt"
	"strconv"
	"strings"
)

// OptionKind is the value type of an Option.
type OptionKind int

const (
	OptionFlag OptionKind = iota
	OptionString
	OptionInt
)

func (k OptionKind) String() string {
	switch k {
	case OptionFlag:
		return "flag"
	case OptionString:
		return "string"
	case OptionInt:
		return "int"
	default:
		return "unknown"
	}
}

// Option describes one backend-specific setting, such as "hdfs.user".
//
// Set and Get are bound to the backend's options value, so applying an
// Option mutates that value in place.
type Option struct {
	Name string
	Help string
	Kind OptionKind
	Set  func(value string) error
	Get  func() string
}

// FlagOption binds a boolean option to target. An empty value sets it.
func FlagOption(name, help string, target *bool) Option {
	return Option{
		Name: name,
		Help: help,
		Kind: OptionFlag,
		Set: func(value string) error {
			if value == "" {
				*target = true
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("option %s: %w", name, err)
			}
			*target = b
			return nil
		},
		Get: func() string { return strconv.FormatBool(*target) },
	}
}

// StringOption binds a string option to target.
func StringOption(name, help string, target *string) Option {
	return Option{
		Name: name,
		Help: help,
		Kind: OptionString,
		Set: func(value string) error {
			*target = value
			return nil
		},
		Get: func() string { return *target },
	}
}

// IntOption binds an integer option to target. Values accept a binary
// size suffix (k, m, g), so "64m" is 64 MiB.
func IntOption(name, help string, target *int64) Option {
	return Option{
		Name: name,
		Help: help,
		Kind: OptionInt,
		Set: func(value string) error {
			n, err := ParseSize(value)
			if err != nil {
				return fmt.Errorf("option %s: %w", name, err)
			}
			*target = n
			return nil
		},
		Get: func() string { return strconv.FormatInt(*target, 10) },
	}
}

// ApplyOption finds name in table and sets it to value.
func ApplyOption(table []Option, name, value string) error {
	for _, opt := range table {
		if opt.Name == name {
			return opt.Set(value)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownOption, name)
}

// ApplyAssignment applies a "name=value" (or bare "name" for flags) string.
func ApplyAssignment(table []Option, assignment string) error {
	name, value, _ := strings.Cut(assignment, "=")
	return ApplyOption(table, strings.TrimSpace(name), strings.TrimSpace(value))
}

// ParseSize parses an integer with an optional k/m/g (binary) suffix.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'k':
		mult = 1 << 10
	case 'm':
		mult = 1 << 20
	case 'g':
		mult = 1 << 30
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * mult, nil
}
