package router

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Adapter names used by DefaultTable.
const (
	AdapterLegacy    = "legacy-ce-1.7"
	AdapterCE1921    = "ce-1.9.2.1"
	AdapterEE1141    = "ee-1.14.1.0"
	versionSeparator = "."
)

// Table maps platform versions to adapter names.
type Table struct {
	// Versions maps an exact version string to an adapter name.
	Versions map[string]string `yaml:"versions"`

	// LegacyEditions are edition strings force-routed to LegacyAdapter when
	// the caller asks for the override. Compared case-insensitively.
	LegacyEditions []string `yaml:"legacy_editions"`

	// LegacyAdapter receives overridden editions.
	LegacyAdapter string `yaml:"legacy_adapter"`

	// DefaultAdapter is used when no known version can be compared.
	DefaultAdapter string `yaml:"default_adapter"`
}

// DefaultTable returns the known version mapping.
func DefaultTable() Table {
	return Table{
		Versions: map[string]string{
			"1.9.2.0":  AdapterCE1921,
			"1.9.2.1":  AdapterCE1921,
			"1.9.2.2":  AdapterCE1921,
			"1.9.0.1":  AdapterLegacy,
			"1.8.1.0":  AdapterLegacy,
			"1.7.0.2":  AdapterLegacy,
			"1.14.1.0": AdapterEE1141,
		},
		LegacyEditions: []string{"1.7.0.2", "1.8.1.0", "1.9.0.1", "1.14.1.0"},
		LegacyAdapter:  AdapterLegacy,
		DefaultAdapter: AdapterLegacy,
	}
}

// LoadTable decodes a YAML table.
func LoadTable(r io.Reader) (Table, error) {
	var t Table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Table{}, fmt.Errorf("decode router table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate checks that the table can route something.
func (t Table) Validate() error {
	var errs []error
	if len(t.Versions) == 0 && t.DefaultAdapter == "" {
		errs = append(errs, errors.New("router table: no versions and no default adapter"))
	}
	if len(t.LegacyEditions) > 0 && t.LegacyAdapter == "" {
		errs = append(errs, errors.New("router table: legacy editions listed without legacy_adapter"))
	}
	for v, name := range t.Versions {
		if name == "" {
			errs = append(errs, fmt.Errorf("router table: version %q has no adapter", v))
		}
	}
	return errors.Join(errs...)
}

// AdapterNames returns every adapter name the table can produce.
func (t Table) AdapterNames() []string {
	seen := map[string]bool{}
	var out []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	add(t.DefaultAdapter)
	add(t.LegacyAdapter)
	for _, n := range t.Versions {
		add(n)
	}
	return out
}

func (t Table) isLegacyEdition(edition string) bool {
	edition = strings.TrimSpace(edition)
	for _, e := range t.LegacyEditions {
		if strings.EqualFold(e, edition) {
			return true
		}
	}
	return false
}

// closest returns the adapter for version: an exact match, else the greatest
// known version not above it, else the smallest known version, else the
// default adapter.
func (t Table) closest(version string) string {
	version = strings.TrimSpace(version)
	if name, ok := t.Versions[version]; ok {
		return name
	}

	target, ok := parseVersion(version)
	if !ok || len(t.Versions) == 0 {
		return t.DefaultAdapter
	}

	var (
		below, lowest         []int
		belowName, lowestName string
	)
	for v, name := range t.Versions {
		parsed, ok := parseVersion(v)
		if !ok {
			continue
		}
		if compareVersions(parsed, target) <= 0 &&
			(below == nil || compareVersions(parsed, below) > 0) {
			below, belowName = parsed, name
		}
		if lowest == nil || compareVersions(parsed, lowest) < 0 {
			lowest, lowestName = parsed, name
		}
	}

	switch {
	case belowName != "":
		return belowName
	case lowestName != "":
		return lowestName
	default:
		return t.DefaultAdapter
	}
}

func parseVersion(s string) ([]int, bool) {
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, versionSeparator)
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// compareVersions compares numerically; missing components count as zero.
func compareVersions(a, b []int) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}
