package api

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// paymentRequestSchema rejects structurally broken bodies before any
// domain code runs. Field value semantics (hex shapes, numeric ranges)
// are the validator's job; this only guarantees the envelope.
const paymentRequestSchema = `{
  "type": "object",
  "required": ["paymentPayload", "paymentRequirements"],
  "properties": {
    "paymentPayload": {
      "type": "object",
      "required": ["token", "payload"],
      "properties": {
        "token": {"type": "string"},
        "payload": {
          "type": "object",
          "required": ["authorization", "signature"],
          "properties": {
            "authorization": {
              "type": "object",
              "required": ["from", "to", "value", "validAfter", "validBefore", "nonce"],
              "properties": {
                "from": {"type": "string"},
                "to": {"type": "string"},
                "value": {"type": "string"},
                "validAfter": {"type": "string"},
                "validBefore": {"type": "string"},
                "nonce": {"type": "string"}
              }
            },
            "signature": {"type": "string"}
          }
        }
      }
    },
    "paymentRequirements": {
      "type": "object",
      "required": ["relayerContract"],
      "properties": {
        "network": {"type": "string"},
        "relayerContract": {"type": "string"}
      }
    }
  }
}`

var compiledSchema = gojsonschema.NewStringLoader(paymentRequestSchema)

// validateEnvelope checks the raw body against the request schema and
// returns a single human-readable description of the first violation.
func validateEnvelope(body []byte) error {
	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid request: %s", errs[0].String())
		}
		return fmt.Errorf("invalid request")
	}
	return nil
}
