package proto

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

var (
	// Current is the highest protocol version this module speaks.
	Current = Version{Major: 3, Minor: 1}
	// MinSupported is the lowest protocol version this module accepts.
	MinSupported = Version{Major: 3, Minor: 0}
)

var ErrInvalidVersion = errors.New("invalid protocol version")

// Version is a protocol version as a (major, minor) pair. The zero value is
// version 0.0 and compares lower than every released version.
type Version struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
}

func V(major, minor uint16) Version { return Version{Major: major, Minor: minor} }

// ParseVersion parses "major.minor".
func ParseVersion(s string) (Version, error) {
	majorStr, minorStr, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	major, err := strconv.ParseUint(majorStr, 10, 16)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, s, err)
	}
	minor, err := strconv.ParseUint(minorStr, 10, 16)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %w", ErrInvalidVersion, s, err)
	}
	return Version{Major: uint16(major), Minor: uint16(minor)}, nil
}

// Compare returns -1, 0 or +1 depending on whether v is lower, equal or
// higher than o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// Compatible reports whether both versions share the major version.
func (v Version) Compatible(o Version) bool { return v.Major == o.Major }

func (v Version) IsZero() bool { return v == Version{} }

func (v Version) String() string {
	return strconv.FormatUint(uint64(v.Major), 10) + "." + strconv.FormatUint(uint64(v.Minor), 10)
}

func (v Version) LogValue() slog.Value { return slog.StringValue(v.String()) }

// Min returns the lower of both versions.
func Min(a, b Version) Version {
	if b.Less(a) {
		return b
	}
	return a
}
