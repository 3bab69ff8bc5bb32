// Package schemas embeds the OpenAPI document that describes the stockroom
// HTTP API. The server validates inbound requests against it.
package schemas

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
