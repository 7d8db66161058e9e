package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// Semver is a parsed major.minor.patch version.
type Semver struct {
	Major int
	Minor int
	Patch int
}

func (s Semver) String() string {
	return fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
}

// Compare returns -1, 0, or 1 as s is less than, equal to, or greater than other.
func (s Semver) Compare(other Semver) int {
	if s.Major != other.Major {
		if s.Major < other.Major {
			return -1
		}
		return 1
	}
	if s.Minor != other.Minor {
		if s.Minor < other.Minor {
			return -1
		}
		return 1
	}
	if s.Patch != other.Patch {
		if s.Patch < other.Patch {
			return -1
		}
		return 1
	}
	return 0
}

// ParseSemver parses a version string like "1.2.3" (an optional leading "v"
// is tolerated).
func ParseSemver(v string) (Semver, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return Semver{}, fmt.Errorf("plugin: expected major.minor.patch, got %q", v)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Semver{}, fmt.Errorf("plugin: invalid major version in %q: %w", v, err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Semver{}, fmt.Errorf("plugin: invalid minor version in %q: %w", v, err)
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return Semver{}, fmt.Errorf("plugin: invalid patch version in %q: %w", v, err)
	}
	return Semver{Major: major, Minor: minor, Patch: patch}, nil
}

// VersionRange is a semver range constraint such as ">=1.0.0", "^2.1.0", or
// "~1.2.0". An empty range is satisfied by every version.
type VersionRange struct {
	raw string
	op  string
	ver Semver
}

func (r VersionRange) String() string {
	if r.raw == "" {
		return "*"
	}
	return r.raw
}

// IsEmpty reports whether the range was the empty/unconstrained range.
func (r VersionRange) IsEmpty() bool {
	return r.raw == ""
}

// ParseVersionRange parses a range string. An empty string is the
// unconstrained range and always satisfied.
func ParseVersionRange(s string) (VersionRange, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return VersionRange{}, nil
	}

	var op, vStr string
	switch {
	case strings.HasPrefix(trimmed, ">="):
		op, vStr = ">=", trimmed[2:]
	case strings.HasPrefix(trimmed, "<="):
		op, vStr = "<=", trimmed[2:]
	case strings.HasPrefix(trimmed, "!="):
		op, vStr = "!=", trimmed[2:]
	case strings.HasPrefix(trimmed, ">"):
		op, vStr = ">", trimmed[1:]
	case strings.HasPrefix(trimmed, "<"):
		op, vStr = "<", trimmed[1:]
	case strings.HasPrefix(trimmed, "^"):
		op, vStr = "^", trimmed[1:]
	case strings.HasPrefix(trimmed, "~"):
		op, vStr = "~", trimmed[1:]
	case strings.HasPrefix(trimmed, "="):
		op, vStr = "=", trimmed[1:]
	default:
		op, vStr = "=", trimmed
	}

	v, err := ParseSemver(strings.TrimSpace(vStr))
	if err != nil {
		return VersionRange{}, err
	}
	return VersionRange{raw: s, op: op, ver: v}, nil
}

// Satisfies reports whether v satisfies the range.
func (r VersionRange) Satisfies(v Semver) bool {
	if r.raw == "" {
		return true
	}
	cmp := v.Compare(r.ver)
	switch r.op {
	case "=":
		return cmp == 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "!=":
		return cmp != 0
	case "^":
		return v.Major == r.ver.Major && cmp >= 0
	case "~":
		return v.Major == r.ver.Major && v.Minor == r.ver.Minor && cmp >= 0
	}
	return false
}
