package issuecredential

import (
	"github.com/findy-network/findy-vcx/std/decorator"
)

// Attachment ids, the same as the indy implementations use.
const (
	OfferAttachID   = "libindy-cred-offer-0"
	RequestAttachID = "libindy-cred-request-0"
	IssueAttachID   = "libindy-cred-0"
)

func NewOfferAttach(offer []byte) []decorator.Attachment {
	return []decorator.Attachment{decorator.NewAttachment(OfferAttachID, offer)}
}

func NewRequestAttach(req []byte) []decorator.Attachment {
	return []decorator.Attachment{decorator.NewAttachment(RequestAttachID, req)}
}

func NewIssueAttach(cred []byte) []decorator.Attachment {
	return []decorator.Attachment{decorator.NewAttachment(IssueAttachID, cred)}
}

func OfferAttach(p *Offer) (data []byte, err error) {
	return decorator.AttachmentBytes(p.OffersAttach)
}

func RequestAttach(p *Request) (data []byte, err error) {
	return decorator.AttachmentBytes(p.RequestsAttach)
}

func IssueAttach(p *Issue) (data []byte, err error) {
	return decorator.AttachmentBytes(p.CredentialsAttach)
}
