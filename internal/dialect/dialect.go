// Package dialect models the fixed set of schema-language dialects the
// harness knows how to speak about.
package dialect

import (
	"fmt"
	"sort"
	"strings"
)

// Dialect identifies one versioned schema-language variant.
type Dialect struct {
	// URI is the canonical identifier implementations declare support for.
	URI string
	// ShortName is the human-facing name ("draft2020-12").
	ShortName string
	// BooleanSchemas reports whether a schema may be a bare boolean
	// instead of an object in this dialect.
	BooleanSchemas bool

	// recency orders dialects newest-first; lower is newer.
	recency int
}

// The known dialects, newest first. Defined once; never mutated.
var known = []Dialect{
	{URI: "https://json-schema.org/draft/2020-12/schema", ShortName: "draft2020-12", BooleanSchemas: true, recency: 0},
	{URI: "https://json-schema.org/draft/2019-09/schema", ShortName: "draft2019-09", BooleanSchemas: true, recency: 1},
	{URI: "http://json-schema.org/draft-07/schema#", ShortName: "draft7", BooleanSchemas: true, recency: 2},
	{URI: "http://json-schema.org/draft-06/schema#", ShortName: "draft6", BooleanSchemas: true, recency: 3},
	{URI: "http://json-schema.org/draft-04/schema#", ShortName: "draft4", BooleanSchemas: false, recency: 4},
	{URI: "http://json-schema.org/draft-03/schema#", ShortName: "draft3", BooleanSchemas: false, recency: 5},
}

// shortNames maps the aliases users type on the command line to canonical
// URIs. Kept in sync with known above.
var shortNames = map[string]string{}

func init() {
	for _, d := range known {
		shortNames[d.ShortName] = d.URI
		shortNames[strings.ToLower(d.URI)] = d.URI

		// draft2020-12 is also reachable as 2020, 2020-12 and 202012.
		bare := strings.TrimPrefix(d.ShortName, "draft")
		shortNames[bare] = d.URI
		shortNames[strings.ReplaceAll(bare, "-", "")] = d.URI
		shortNames[strings.ReplaceAll(d.ShortName, "-", "")] = d.URI
		if i := strings.IndexByte(bare, '-'); i > 0 {
			shortNames[bare[:i]] = d.URI
		}
	}
}

// Known returns every dialect the harness understands, newest first.
func Known() []Dialect {
	out := make([]Dialect, len(known))
	copy(out, known)
	return out
}

// Latest returns the newest known dialect, used as the default selection.
func Latest() Dialect {
	return known[0]
}

// Lookup resolves a canonical URI or a shortname to a known dialect.
func Lookup(name string) (Dialect, bool) {
	uri, ok := shortNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Dialect{}, false
	}
	for _, d := range known {
		if d.URI == uri {
			return d, true
		}
	}
	return Dialect{}, false
}

// MustLookup is Lookup for the fixed constants in tests and defaults.
func MustLookup(name string) Dialect {
	d, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("dialect: unknown dialect %q", name))
	}
	return d
}

// Newer reports whether d is more recent than other.
func (d Dialect) Newer(other Dialect) bool {
	return d.recency < other.recency
}

// String returns the canonical URI.
func (d Dialect) String() string {
	return d.URI
}

// Sort orders dialects in place, newest first.
func Sort(ds []Dialect) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].recency < ds[j].recency })
}

// ShortNames returns the accepted aliases, sorted, for help text.
func ShortNames() []string {
	out := make([]string, 0, len(shortNames))
	seen := map[string]bool{}
	for name := range shortNames {
		if strings.HasPrefix(name, "http") || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
