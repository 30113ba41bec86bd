package common

import (
	"encoding/json"
	"testing"

	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var problemJSON = `{
    "description": { "code": "verification-failed" },
    "explain-ltxt": "proof is not valid"
  }`

func TestProblemReport_ReadJSON(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	var pr ProblemReport
	try.To(json.Unmarshal([]byte(problemJSON), &pr))
	assert.DeepEqual(&pr, NewProblemReport(CodeVerificationFailed, "proof is not valid"))

	var ack Ack
	try.To(json.Unmarshal([]byte(`{"status":"OK"}`), &ack))
	assert.Equal(ack.Status, StatusOK)
}
