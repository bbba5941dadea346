// Package tz binds timezone labels to datetime storage.
//
// Datetime storage always holds zone-naive int64 ticks counted from the Unix
// epoch. A zone is metadata: it is applied by Localize when a value is read
// and never changes the stored ticks.
package tz

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tuannm99/novaframe/internal/record"
)

var ErrUnknownZone = errors.New("tz: unknown timezone")

// Strategy decides how datetime blocks bound to a zone are initialized.
type Strategy uint8

const (
	// SafeFill writes SafeTick into every slot before the zone is bound.
	SafeFill Strategy = iota + 1
	// Deferred leaves the block untouched; zones only apply on read.
	Deferred
)

func (s Strategy) String() string {
	switch s {
	case SafeFill:
		return "safe-fill"
	case Deferred:
		return "deferred"
	default:
		return "unknown"
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "safe-fill", "":
		return SafeFill, nil
	case "deferred":
		return Deferred, nil
	default:
		return 0, fmt.Errorf("tz: invalid strategy: %s", s)
	}
}

// SafeTick is the Unix epoch. No zone has a DST transition there.
const SafeTick int64 = 0

const DefaultCacheSize = 64

// Registry resolves labels to locations, caching loaded zones.
type Registry struct {
	cache *lru.Cache[string, *time.Location]
}

func NewRegistry(size int) (*Registry, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *time.Location](size)
	if err != nil {
		return nil, fmt.Errorf("tz: new cache: %w", err)
	}
	return &Registry{cache: c}, nil
}

// Load resolves label. "UTC" and "" map to time.UTC.
func (r *Registry) Load(label string) (*time.Location, error) {
	if label == "" || label == "UTC" {
		return time.UTC, nil
	}
	if loc, ok := r.cache.Get(label); ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(label)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownZone, label, err)
	}
	r.cache.Add(label, loc)
	slog.Debug("tz: loaded zone", "label", label)
	return loc, nil
}

// Localize maps raw ticks at unit to an instant in loc. It never fails.
func Localize(ticks int64, unit record.Unit, loc *time.Location) time.Time {
	t := TicksToTime(ticks, unit)
	if loc == nil {
		return t
	}
	return t.In(loc)
}

// TicksToTime interprets ticks as a UTC instant.
func TicksToTime(ticks int64, unit record.Unit) time.Time {
	switch unit {
	case record.Second:
		return time.Unix(ticks, 0).UTC()
	case record.Milli:
		return time.UnixMilli(ticks).UTC()
	case record.Micro:
		return time.UnixMicro(ticks).UTC()
	default:
		return time.Unix(0, ticks).UTC()
	}
}

// TimeToTicks is the inverse of TicksToTime, truncating below unit.
func TimeToTicks(t time.Time, unit record.Unit) int64 {
	switch unit {
	case record.Second:
		return t.Unix()
	case record.Milli:
		return t.UnixMilli()
	case record.Micro:
		return t.UnixMicro()
	default:
		return t.UnixNano()
	}
}

// Ambiguous reports whether the wall clock reading of t (ignoring t's own
// zone) is ambiguous or nonexistent in loc, i.e. whether treating it as local
// time would need a DST decision.
func Ambiguous(t time.Time, loc *time.Location) bool {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	local := time.Date(y, mo, d, h, mi, s, t.Nanosecond(), loc)

	lh, lmi, ls := local.Clock()
	if lh != h || lmi != mi || ls != s {
		// skipped forward: nonexistent
		return true
	}
	// repeated hour: the same wall time exists at two offsets
	for _, shift := range []time.Duration{-time.Hour, time.Hour} {
		other := local.Add(shift)
		oh, omi, os := other.Clock()
		if oh == h && omi == mi && os == s && other.Day() == d {
			return true
		}
	}
	return false
}
