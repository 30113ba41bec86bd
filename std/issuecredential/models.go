/*
Taken from aries-framework-go, and heavily modified: the messages have no type,
id or thread of their own because those are in the msg envelope.
*/

// Package issuecredential is package for the messages of the credential
// issuing protocol.
package issuecredential

import (
	"github.com/findy-network/findy-vcx/std/decorator"
)

// Offer is a message sent by the Issuer to the potential Holder,
// describing the credential they intend to offer and possibly the price they
// expect to be paid.
type Offer struct {
	Comment string `json:"comment,omitempty"`

	// CredentialName is the issuer given name of the credential.
	CredentialName string `json:"credential_name,omitempty"`

	// Price of the credential, zero is free.
	Price string `json:"price,omitempty"`

	// CredentialPreview represents the credential data that Issuer is
	// willing to issue.
	CredentialPreview PreviewCredential `json:"credential_preview,omitempty"`

	// OffersAttach has the anoncreds credential offer.
	OffersAttach []decorator.Attachment `json:"offers~attach,omitempty"`
}

// Request is a message sent by the potential Holder to the Issuer,
// to request the issuance of a credential.
type Request struct {
	Comment string `json:"comment,omitempty"`

	// RequestsAttach has the blinded credential request.
	RequestsAttach []decorator.Attachment `json:"requests~attach,omitempty"`
}

// Issue contains as attached payload the credentials being issued and is
// sent in response to a valid Request message.
type Issue struct {
	Comment string `json:"comment,omitempty"`

	CredentialsAttach []decorator.Attachment `json:"credentials~attach,omitempty"`
}

// PreviewCredential is used to construct a preview of the data for the
// credential that is to be issued.
type PreviewCredential struct {
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Attribute describes an attribute for a Preview Credential
type Attribute struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime-type,omitempty"`
	Value    string `json:"value,omitempty"`
}

// NewPreview builds the preview of raw attribute values.
func NewPreview(values map[string]string) PreviewCredential {
	p := PreviewCredential{Attributes: make([]Attribute, 0, len(values))}
	for name, v := range values {
		p.Attributes = append(p.Attributes, Attribute{Name: name, Value: v})
	}
	return p
}

// Values returns the preview as a name to value map.
func (p PreviewCredential) Values() map[string]string {
	values := make(map[string]string, len(p.Attributes))
	for _, a := range p.Attributes {
		values[a.Name] = a.Value
	}
	return values
}
