package embedfiles

import _ "embed"

//go:embed schemas/implementation.schema.json
var ImplementationSchemaJSON []byte
