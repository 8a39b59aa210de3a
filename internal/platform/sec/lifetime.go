// Copyright (c) 2026 Admitly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// # Token Lifetimes

// LifetimeUnit is the enumerated unit of a configured token lifetime.
type LifetimeUnit byte

const (
	UnitSecond LifetimeUnit = 's'
	UnitMinute LifetimeUnit = 'm'
	UnitHour   LifetimeUnit = 'h'
	UnitDay    LifetimeUnit = 'd'
)

// MaxLifetime bounds any configured lifetime.
const MaxLifetime = 366 * 24 * time.Hour

// ErrInvalidLifetime is returned for any value outside the "<integer><unit>" grammar.
var ErrInvalidLifetime = errors.New("sec: invalid lifetime")

// Lifetime is a token lifetime such as "15m" or "7d".
//
// It is parsed once at configuration load time. The zero value is invalid and
// is replaced by a default wherever a lifetime is consumed.
type Lifetime struct {
	Magnitude int
	Unit      LifetimeUnit
}

// ParseLifetime parses "<positive integer><s|m|h|d>".
func ParseLifetime(raw string) (Lifetime, error) {
	value := strings.TrimSpace(raw)
	if len(value) < 2 {
		return Lifetime{}, fmt.Errorf("%w: %q", ErrInvalidLifetime, raw)
	}

	unit := LifetimeUnit(value[len(value)-1])
	if !unit.valid() {
		return Lifetime{}, fmt.Errorf("%w: unknown unit in %q", ErrInvalidLifetime, raw)
	}

	// Only plain decimal digits; strconv.Atoi alone would accept "+5".
	digits := value[:len(value)-1]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Lifetime{}, fmt.Errorf("%w: %q", ErrInvalidLifetime, raw)
		}
	}

	magnitude, err := strconv.Atoi(digits)
	if err != nil || magnitude <= 0 || magnitude > int(MaxLifetime/unit.size()) {
		return Lifetime{}, fmt.Errorf("%w: %q", ErrInvalidLifetime, raw)
	}

	return Lifetime{Magnitude: magnitude, Unit: unit}, nil
}

// MustLifetime parses raw or panics. Intended for package-level defaults.
func MustLifetime(raw string) Lifetime {
	lifetime, err := ParseLifetime(raw)
	if err != nil {
		panic(err)
	}
	return lifetime
}

// Valid reports whether the lifetime has a positive magnitude and a known unit.
func (l Lifetime) Valid() bool {
	return l.Magnitude > 0 && l.Unit.valid() && l.Magnitude <= int(MaxLifetime/l.Unit.size())
}

// Duration converts the lifetime into a [time.Duration]. Invalid lifetimes return 0.
func (l Lifetime) Duration() time.Duration {
	if !l.Valid() {
		return 0
	}

	return time.Duration(l.Magnitude) * l.Unit.size()
}

// OrDefault returns l when valid, otherwise fallback.
func (l Lifetime) OrDefault(fallback Lifetime) Lifetime {
	if l.Valid() {
		return l
	}
	return fallback
}

// String renders the lifetime in its configuration form ("15m").
func (l Lifetime) String() string {
	if !l.Valid() {
		return ""
	}
	return strconv.Itoa(l.Magnitude) + string(rune(l.Unit))
}

// UnmarshalText implements [encoding.TextUnmarshaler] so env parsing fails hard.
func (l *Lifetime) UnmarshalText(text []byte) error {
	parsed, err := ParseLifetime(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (u LifetimeUnit) size() time.Duration {
	switch u {
	case UnitSecond:
		return time.Second
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

func (u LifetimeUnit) valid() bool {
	switch u {
	case UnitSecond, UnitMinute, UnitHour, UnitDay:
		return true
	default:
		return false
	}
}
