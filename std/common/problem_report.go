package common

// ProblemReport problem report definition
type ProblemReport struct {
	Description    Code   `json:"description"`
	ExplainLongTxt string `json:"explain-ltxt,omitempty"`
}

// Code represents a problem report code
type Code struct {
	Code string `json:"code"`
}

// Problem codes.
const (
	CodeRejected           = "rejected"
	CodeVerificationFailed = "verification-failed"
	CodeInvalidRequest     = "invalid-request"
)

// NewProblemReport returns a report of the code with an explanation.
func NewProblemReport(code, explain string) *ProblemReport {
	return &ProblemReport{
		Description:    Code{Code: code},
		ExplainLongTxt: explain,
	}
}
