package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsvx/crosscheck/internal/domain"
)

func TestSmokeCases(t *testing.T) {
	const uri = "https://json-schema.org/draft/2020-12/schema"
	cases := smokeCases(uri)
	require.Len(t, cases, 2)

	for _, tc := range cases {
		require.NoError(t, tc.Check())
		var schema map[string]any
		require.NoError(t, json.Unmarshal(tc.Schema, &schema))
		assert.Equal(t, uri, schema["$schema"])
	}

	// Allow-everything expects every instance valid; allow-nothing the
	// opposite.
	for _, test := range cases[0].Tests {
		require.NotNil(t, test.Valid)
		assert.True(t, *test.Valid)
	}
	for _, test := range cases[1].Tests {
		require.NotNil(t, test.Valid)
		assert.False(t, *test.Valid)
	}
}

func TestNewestSupported(t *testing.T) {
	impl := domain.Implementation{Dialects: []string{
		"http://json-schema.org/draft-07/schema#",
		"https://json-schema.org/draft/2020-12/schema",
		"http://json-schema.org/draft-04/schema#",
	}}
	assert.Equal(t, "https://json-schema.org/draft/2020-12/schema", newestSupported(impl))
}

func TestNewestSupportedUnknownFallsBack(t *testing.T) {
	impl := domain.Implementation{Dialects: []string{"https://example.com/custom-dialect"}}
	assert.Equal(t, "https://example.com/custom-dialect", newestSupported(impl))
}
