// Package presentproof has the messages of the present proof protocol and
// the JSON schema of the proof request it carries.
package presentproof

import "github.com/findy-network/findy-vcx/std/decorator"

// Attachment ids.
const (
	RequestAttachID      = "libindy-request-presentation-0"
	PresentationAttachID = "libindy-presentation-0"
)

// MARK: Request

type Request struct {
	Comment              string                 `json:"comment,omitempty"`
	RequestPresentations []decorator.Attachment `json:"request_presentations~attach,omitempty"`
}

// MARK: Presentation

type Presentation struct {
	Comment              string                 `json:"comment,omitempty"`
	PresentationAttaches []decorator.Attachment `json:"presentations~attach,omitempty"`
}

func NewRequest(comment string, proofReq []byte) *Request {
	return &Request{
		Comment: comment,
		RequestPresentations: []decorator.Attachment{
			decorator.NewAttachment(RequestAttachID, proofReq)},
	}
}

func NewPresentation(proof []byte) *Presentation {
	return &Presentation{
		PresentationAttaches: []decorator.Attachment{
			decorator.NewAttachment(PresentationAttachID, proof)},
	}
}

func (r *Request) ProofRequest() ([]byte, error) {
	return decorator.AttachmentBytes(r.RequestPresentations)
}

func (p *Presentation) Proof() ([]byte, error) {
	return decorator.AttachmentBytes(p.PresentationAttaches)
}
