package domain

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"

	embedfiles "github.com/jsvx/crosscheck"
)

// Link is one extra reference an implementation advertises about itself.
type Link struct {
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Implementation is the self-description an implementation returns during
// the start handshake, plus the harness-assigned identity. Created once at
// startup and read-only thereafter.
type Implementation struct {
	// ID is the stable identity the harness knows the implementation by
	// (image reference or direct-adapter name). Assigned by the harness,
	// never by the implementation.
	ID string `json:"id"`

	Name            string   `json:"name"`
	Language        string   `json:"language"`
	LanguageVersion string   `json:"language_version,omitempty"`
	OS              string   `json:"os,omitempty"`
	OSVersion       string   `json:"os_version,omitempty"`
	Homepage        string   `json:"homepage"`
	Issues          string   `json:"issues"`
	Source          string   `json:"source"`
	Dialects        []string `json:"dialects"`
	Links           []Link   `json:"links,omitempty"`

	// Extra preserves fields the harness does not recognize so they
	// survive a report round-trip.
	Extra map[string]json.RawMessage `json:"-"`
}

// implementationAlias avoids recursing into the custom JSON methods.
type implementationAlias Implementation

// MarshalJSON merges the unrecognized fields back into the encoded object.
func (i Implementation) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(implementationAlias(i))
	if err != nil {
		return nil, err
	}
	if len(i.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range i.Extra {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the typed fields and stashes everything else in Extra.
func (i *Implementation) UnmarshalJSON(data []byte) error {
	var alias implementationAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key := range all {
		if knownMetadataFields[key] || key == "id" {
			continue
		}
		if alias.Extra == nil {
			alias.Extra = map[string]json.RawMessage{}
		}
		alias.Extra[key] = all[key]
	}
	*i = Implementation(alias)
	return nil
}

// knownMetadataFields are the keys consumed by the typed fields above.
var knownMetadataFields = map[string]bool{
	"name": true, "language": true, "language_version": true,
	"os": true, "os_version": true, "homepage": true, "issues": true,
	"source": true, "dialects": true, "links": true,
}

var (
	metadataSchemaOnce sync.Once
	metadataSchema     *jsonschema.Schema
	metadataSchemaErr  error
)

func compiledMetadataSchema() (*jsonschema.Schema, error) {
	metadataSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = false
		metadataSchema, metadataSchemaErr = compiler.Compile(embedfiles.ImplementationSchemaJSON)
	})
	return metadataSchema, metadataSchemaErr
}

// ParseImplementation validates raw start-handshake metadata against the
// self-description schema and decodes it. A validation failure makes the
// implementation unusable for the remainder of the run, so callers treat any
// error here as fatal to that implementation.
func ParseImplementation(id string, raw json.RawMessage) (Implementation, error) {
	schema, err := compiledMetadataSchema()
	if err != nil {
		return Implementation{}, fmt.Errorf("compile metadata schema: %w", err)
	}
	result := schema.ValidateJSON(raw)
	if !result.IsValid() {
		return Implementation{}, fmt.Errorf("metadata failed self-description validation: %v", result.Errors)
	}

	var impl Implementation
	if err := json.Unmarshal(raw, &impl); err != nil {
		return Implementation{}, fmt.Errorf("decode metadata: %w", err)
	}
	impl.ID = id
	return impl, nil
}

// SupportsDialect reports whether the implementation declared the dialect URI.
func (i Implementation) SupportsDialect(uri string) bool {
	for _, d := range i.Dialects {
		if d == uri {
			return true
		}
	}
	return false
}
