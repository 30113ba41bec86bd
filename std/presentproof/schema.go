package presentproof

import (
	"strings"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/xeipuuv/gojsonschema"
)

const proofRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "restrictions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "schema_id": {"type": "string"},
          "schema_issuer_did": {"type": "string"},
          "schema_name": {"type": "string"},
          "schema_version": {"type": "string"},
          "issuer_did": {"type": "string"},
          "cred_def_id": {"type": "string"}
        },
        "additionalProperties": false
      }
    },
    "non_revoked": {
      "type": "object",
      "properties": {
        "from": {"type": "integer"},
        "to": {"type": "integer"}
      },
      "additionalProperties": false
    }
  },
  "type": "object",
  "required": ["nonce", "requested_attributes"],
  "properties": {
    "name": {"type": "string"},
    "version": {"type": "string"},
    "nonce": {"type": "string", "pattern": "^[0-9]+$"},
    "requested_attributes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "names": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
          "restrictions": {"$ref": "#/definitions/restrictions"},
          "non_revoked": {"$ref": "#/definitions/non_revoked"}
        },
        "oneOf": [{"required": ["name"]}, {"required": ["names"]}]
      }
    },
    "requested_predicates": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["name", "p_type", "p_value"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "p_type": {"enum": [">=", ">", "<=", "<"]},
          "p_value": {"type": "integer"},
          "restrictions": {"$ref": "#/definitions/restrictions"},
          "non_revoked": {"$ref": "#/definitions/non_revoked"}
        }
      }
    },
    "non_revoked": {"$ref": "#/definitions/non_revoked"}
  }
}`

var schema *gojsonschema.Schema

func init() {
	var err error
	schema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(proofRequestSchema))
	if err != nil {
		panic(err)
	}
}

// ValidateProofRequest checks the proof request JSON against the schema.
// Malformed JSON is InvalidJSON, a schema violation is InvalidOption.
func ValidateProofRequest(data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return vcxerr.Wrap(vcxerr.InvalidJSON, err, "proof request")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return vcxerr.New(vcxerr.InvalidOption, "proof request: %s", strings.Join(msgs, "; "))
	}
	return nil
}
