package hal

import (
	"fmt"
	"strings"
)

// ControlKind is the value type a control accepts.
type ControlKind uint8

// Control kinds.
const (
	ControlInteger ControlKind = iota + 1
	ControlBoolean
	ControlMenu
	ControlButton
)

func (k ControlKind) String() string {
	switch k {
	case ControlInteger:
		return "integer"
	case ControlBoolean:
		return "boolean"
	case ControlMenu:
		return "menu"
	case ControlButton:
		return "button"
	default:
		return fmt.Sprintf("ControlKind(%d)", uint8(k))
	}
}

// ControlFlags describe access restrictions.
type ControlFlags uint32

// Control flags.
const (
	FlagReadOnly ControlFlags = 1 << iota
	FlagWriteOnly
	FlagInactive
)

func (f ControlFlags) String() string {
	var parts []string
	if f&FlagReadOnly != 0 {
		parts = append(parts, "read-only")
	}
	if f&FlagWriteOnly != 0 {
		parts = append(parts, "write-only")
	}
	if f&FlagInactive != 0 {
		parts = append(parts, "inactive")
	}
	return strings.Join(parts, ",")
}

// MenuItem is one choice of a menu control.
type MenuItem struct {
	Index int64
	Name  string
}

// Control describes a device-adjustable parameter.
type Control struct {
	ID      uint32
	Name    string
	Kind    ControlKind
	Min     int64
	Max     int64
	Step    int64
	Default int64
	Menu    []MenuItem
	Flags   ControlFlags
}

// Validate checks that v has the kind c declares and lies in its range.
// A button carries no value, so any v triggers it.
func (c Control) Validate(v Value) error {
	if c.Flags&FlagReadOnly != 0 {
		return fmt.Errorf("%w: control %q is read-only", ErrValueMismatch, c.Name)
	}
	if c.Kind == ControlButton {
		return nil
	}
	want := c.Kind.valueKind()
	if v.Kind() != want {
		return fmt.Errorf("%w: control %q wants %s, got %s", ErrValueMismatch, c.Name, want, v.Kind())
	}
	switch c.Kind {
	case ControlInteger:
		n := v.Int()
		if n < c.Min || n > c.Max {
			return fmt.Errorf("%w: %d outside [%d, %d] for %q", ErrValueMismatch, n, c.Min, c.Max, c.Name)
		}
		if c.Step > 1 && (n-c.Min)%c.Step != 0 {
			return fmt.Errorf("%w: %d not a multiple of step %d for %q", ErrValueMismatch, n, c.Step, c.Name)
		}
	case ControlMenu:
		idx := v.Int()
		for _, item := range c.Menu {
			if item.Index == idx {
				return nil
			}
		}
		return fmt.Errorf("%w: menu index %d not offered by %q", ErrValueMismatch, idx, c.Name)
	}
	return nil
}

// FindControl returns the control with id from controls.
func FindControl(controls []Control, id uint32) (Control, error) {
	for _, c := range controls {
		if c.ID == id {
			return c, nil
		}
	}
	return Control{}, fmt.Errorf("%w: id 0x%08x", ErrUnknownControl, id)
}

func (k ControlKind) valueKind() ValueKind {
	switch k {
	case ControlInteger:
		return ValueInteger
	case ControlBoolean:
		return ValueBoolean
	case ControlMenu:
		return ValueMenu
	default:
		return ValueNone
	}
}

// ValueKind discriminates Value variants.
type ValueKind uint8

// Value kinds.
const (
	ValueNone ValueKind = iota
	ValueInteger
	ValueBoolean
	ValueMenu
)

func (k ValueKind) String() string {
	switch k {
	case ValueNone:
		return "none"
	case ValueInteger:
		return "integer"
	case ValueBoolean:
		return "boolean"
	case ValueMenu:
		return "menu"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is a typed control value. The zero Value is None, used to trigger
// button controls.
type Value struct {
	kind ValueKind
	n    int64
}

// None returns the empty value.
func None() Value { return Value{} }

// Integer returns an integer value.
func Integer(n int64) Value { return Value{kind: ValueInteger, n: n} }

// Boolean returns a boolean value.
func Boolean(b bool) Value {
	v := Value{kind: ValueBoolean}
	if b {
		v.n = 1
	}
	return v
}

// MenuIndex returns a menu selection.
func MenuIndex(idx int64) Value { return Value{kind: ValueMenu, n: idx} }

// ValueFor builds the value of c's kind from a raw backend integer.
func ValueFor(c Control, raw int64) Value {
	switch c.Kind {
	case ControlInteger:
		return Integer(raw)
	case ControlBoolean:
		return Boolean(raw != 0)
	case ControlMenu:
		return MenuIndex(raw)
	default:
		return None()
	}
}

// Kind returns the variant of v.
func (v Value) Kind() ValueKind { return v.kind }

// Int returns the integer payload; booleans are 0 or 1.
func (v Value) Int() int64 { return v.n }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.n != 0 }

func (v Value) String() string {
	switch v.kind {
	case ValueInteger:
		return fmt.Sprintf("%d", v.n)
	case ValueBoolean:
		return fmt.Sprintf("%t", v.n != 0)
	case ValueMenu:
		return fmt.Sprintf("menu[%d]", v.n)
	default:
		return "none"
	}
}
