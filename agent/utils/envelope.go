package utils

import (
	"encoding/json"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2"
)

// SerializeVersion is the only version of the serialization envelope.
const SerializeVersion = "1.0"

type envelope struct {
	Version string          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Serialize wraps the JSON of v to the versioned envelope:
// {"version":"1.0","data":{...}}
func Serialize(v any) (data []byte, err error) {
	defer err2.Handle(&err, "serialize")

	return dto.ToJSONBytes(envelope{
		Version: SerializeVersion,
		Data:    dto.ToJSONBytes(v),
	}), nil
}

// Deserialize is the inverse of Serialize. Malformed JSON is InvalidJSON
// and an unknown envelope version is InvalidOption.
func Deserialize(data []byte, v any) error {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return vcxerr.Wrap(vcxerr.InvalidJSON, err, "deserialize")
	}
	if e.Version != SerializeVersion {
		return vcxerr.New(vcxerr.InvalidOption, "unknown serialization version %q", e.Version)
	}
	if len(e.Data) == 0 {
		return vcxerr.New(vcxerr.InvalidJSON, "deserialize: no data")
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return vcxerr.Wrap(vcxerr.InvalidJSON, err, "deserialize data")
	}
	return nil
}
