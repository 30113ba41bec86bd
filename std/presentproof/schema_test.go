package presentproof

import (
	"errors"
	"testing"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/stretchr/testify/require"
)

func TestValidateProofRequest(t *testing.T) {
	tests := []struct {
		name string
		req  string
		kind vcxerr.Kind
	}{
		{"gvt", `{"name":"proof_req_1","version":"0.1","nonce":"123432421212",
			"requested_attributes":{"attr1_referent":{"name":"name",
			"restrictions":[{"issuer_did":"V4SGRU86Z58d6TV7PBUe6f"}]}},
			"requested_predicates":{"predicate1_referent":{"name":"age","p_type":">=","p_value":18}}}`,
			vcxerr.Unknown},
		{"names", `{"nonce":"1","requested_attributes":{"a":{"names":["name","sex"]}}}`,
			vcxerr.Unknown},
		{"bad json", `{"nonce":`, vcxerr.InvalidJSON},
		{"no nonce", `{"requested_attributes":{}}`, vcxerr.InvalidOption},
		{"hex nonce", `{"nonce":"ab","requested_attributes":{}}`, vcxerr.InvalidOption},
		{"name and names", `{"nonce":"1","requested_attributes":{"a":{"name":"x","names":["y"]}}}`,
			vcxerr.InvalidOption},
		{"bad p_type", `{"nonce":"1","requested_attributes":{},
			"requested_predicates":{"p":{"name":"age","p_type":"==","p_value":1}}}`,
			vcxerr.InvalidOption},
		{"unknown restriction", `{"nonce":"1","requested_attributes":{"a":{"name":"x",
			"restrictions":[{"issuer":"x"}]}}}`, vcxerr.InvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProofRequest([]byte(tt.req))
			if tt.kind == vcxerr.Unknown {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}
