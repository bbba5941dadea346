package record

import (
	"fmt"
	"time"
)

// Unit is the resolution of datetime ticks.
type Unit uint8

const (
	UnitInvalid Unit = iota
	Second
	Milli
	Micro
	Nano
)

func (u Unit) String() string {
	switch u {
	case Second:
		return "s"
	case Milli:
		return "ms"
	case Micro:
		return "us"
	case Nano:
		return "ns"
	default:
		return "?"
	}
}

func (u Unit) Valid() bool { return u >= Second && u <= Nano }

// Duration is the length of one tick.
func (u Unit) Duration() time.Duration {
	switch u {
	case Second:
		return time.Second
	case Milli:
		return time.Millisecond
	case Micro:
		return time.Microsecond
	default:
		return time.Nanosecond
	}
}

// ParseUnit accepts the numpy unit suffixes s, ms, us and ns.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "s":
		return Second, nil
	case "ms":
		return Milli, nil
	case "us", "μs":
		return Micro, nil
	case "ns", "":
		return Nano, nil
	default:
		return UnitInvalid, fmt.Errorf("%w: unsupported datetime unit %q", ErrSchemaMismatch, s)
	}
}
