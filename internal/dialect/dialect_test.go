package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownOrdering(t *testing.T) {
	ds := Known()
	require.NotEmpty(t, ds)

	for i := 1; i < len(ds); i++ {
		assert.True(t, ds[i-1].Newer(ds[i]), "%s should be newer than %s", ds[i-1].URI, ds[i].URI)
	}
	assert.Equal(t, Latest(), ds[0])
}

func TestLookupByURI(t *testing.T) {
	d, ok := Lookup("https://json-schema.org/draft/2020-12/schema")
	require.True(t, ok)
	assert.Equal(t, "draft2020-12", d.ShortName)
	assert.True(t, d.BooleanSchemas)
}

func TestLookupShortnames(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"draft2020-12", "https://json-schema.org/draft/2020-12/schema"},
		{"2020-12", "https://json-schema.org/draft/2020-12/schema"},
		{"202012", "https://json-schema.org/draft/2020-12/schema"},
		{"2020", "https://json-schema.org/draft/2020-12/schema"},
		{"2019", "https://json-schema.org/draft/2019-09/schema"},
		{"draft7", "http://json-schema.org/draft-07/schema#"},
		{"7", "http://json-schema.org/draft-07/schema#"},
		{"4", "http://json-schema.org/draft-04/schema#"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.URI)
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("draft99")
	assert.False(t, ok)

	_, ok = Lookup("https://example.com/not-a-dialect")
	assert.False(t, ok)
}

func TestBooleanSchemas(t *testing.T) {
	assert.True(t, MustLookup("draft6").BooleanSchemas)
	assert.False(t, MustLookup("draft4").BooleanSchemas)
	assert.False(t, MustLookup("draft3").BooleanSchemas)
}

func TestKnownIsACopy(t *testing.T) {
	ds := Known()
	ds[0].URI = "mutated"
	assert.NotEqual(t, "mutated", Known()[0].URI)
}
