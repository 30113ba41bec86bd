// Package sec is the secure pipe between the two ends of a connection. All
// protocol messages go through it: Pack signs with our key and encrypts to
// the other end's box key, Unpack opens and checks the signature against the
// other end's verkey. AnonPack and AnonUnpack are for the first message of a
// connection when the sender is not yet known to the receiver.
package sec

import (
	"crypto/rand"
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"
)

const nonceLen = 24

// Endpoint is the public side of the other end of a pipe.
type Endpoint struct {
	DID    string `json:"did"`
	Verkey string `json:"verkey"`
	BoxKey string `json:"box_key"`
}

// Pipe is a secure way to transport data between the ends of a connection.
// In is our DID, Out the other end.
type Pipe struct {
	Keys *ssi.Keys
	In   string
	Out  Endpoint
}

type signed struct {
	Payload   []byte `json:"payload"`
	Verkey    string `json:"verkey"`
	Signature string `json:"signature"`
}

type sealed struct {
	SenderBox  string `json:"sender_box"`
	Nonce      string `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func boxKey(s string) (*[32]byte, error) {
	b, err := base58.Decode(s)
	if err != nil || len(b) != 32 {
		return nil, vcxerr.New(vcxerr.UnknownCryptoMethod, "box key %q", s)
	}
	k := new([32]byte)
	copy(k[:], b)
	return k, nil
}

// Sign signs the message and returns the verification key.
func (p Pipe) Sign(src []byte) (dst []byte, vk string, err error) {
	defer err2.Handle(&err, "pipe sign")

	d := try.To1(p.Keys.GetDID(p.In))
	dst = try.To1(p.Keys.SignWithKey(d.Verkey, src))
	return dst, d.Verkey, nil
}

// Verify verifies the signature of the message by the other end and returns
// its verification key.
func (p Pipe) Verify(msg, signature []byte) (yes bool, vk string, err error) {
	defer err2.Handle(&err, "pipe verify")

	yes = try.To1(ssi.Verify(p.Out.Verkey, msg, signature))
	return yes, p.Out.Verkey, nil
}

func (p Pipe) signed(src []byte) []byte {
	sig, vk := try.To2(p.Sign(src))
	return try.To1(json.Marshal(signed{
		Payload:   src,
		Verkey:    vk,
		Signature: base58.Encode(sig),
	}))
}

// Pack signs and encrypts the byte slice to the other end and returns our
// verification key as well.
func (p Pipe) Pack(src []byte) (dst []byte, vk string, err error) {
	defer err2.Handle(&err, "sec pipe pack")

	recipient := try.To1(boxKey(p.Out.BoxKey))
	pub, priv, err := p.Keys.BoxKeys(p.In)
	try.To(err)
	var nonce [nonceLen]byte
	try.To1(rand.Read(nonce[:]))

	inner := p.signed(src)
	dst = try.To1(json.Marshal(sealed{
		SenderBox:  base58.Encode(pub[:]),
		Nonce:      base58.Encode(nonce[:]),
		Ciphertext: box.Seal(nil, inner, &nonce, recipient, priv),
	}))
	d := try.To1(p.Keys.GetDID(p.In))
	glog.V(5).Infof("packed %d bytes for %s", len(src), p.Out.DID)
	return dst, d.Verkey, nil
}

// Unpack opens the box, checks that it came from the other end and returns
// the payload with the sender's verification key.
func (p Pipe) Unpack(src []byte) (dst []byte, vk string, err error) {
	defer err2.Handle(&err, "sec pipe unpack")

	var s sealed
	if err := json.Unmarshal(src, &s); err != nil {
		return nil, "", vcxerr.Wrap(vcxerr.InvalidJSON, err, "sealed message")
	}
	if s.SenderBox != p.Out.BoxKey {
		return nil, "", vcxerr.New(vcxerr.VerificationFailed, "message is not from %s", p.Out.DID)
	}
	sender := try.To1(boxKey(s.SenderBox))
	nb, err := base58.Decode(s.Nonce)
	if err != nil || len(nb) != nonceLen {
		return nil, "", vcxerr.New(vcxerr.InvalidOption, "box nonce")
	}
	var nonce [nonceLen]byte
	copy(nonce[:], nb)
	_, priv, err := p.Keys.BoxKeys(p.In)
	try.To(err)
	inner, ok := box.Open(nil, s.Ciphertext, &nonce, sender, priv)
	if !ok {
		return nil, "", vcxerr.New(vcxerr.VerificationFailed, "cannot open box")
	}
	return openSigned(inner, p.Out.Verkey)
}

func openSigned(data []byte, verkey string) (dst []byte, vk string, err error) {
	var sm signed
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, "", vcxerr.Wrap(vcxerr.InvalidJSON, err, "signed message")
	}
	if verkey != "" && sm.Verkey != verkey {
		return nil, "", vcxerr.New(vcxerr.VerificationFailed, "signed by %s", sm.Verkey)
	}
	sig, err := base58.Decode(sm.Signature)
	if err != nil {
		return nil, "", vcxerr.New(vcxerr.VerificationFailed, "signature encoding")
	}
	ok, err := ssi.Verify(sm.Verkey, sm.Payload, sig)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", vcxerr.New(vcxerr.VerificationFailed, "signature")
	}
	return sm.Payload, sm.Verkey, nil
}

// AnonPack signs the payload with our key and seals it to the box key so
// that only its owner can open it. The receiver learns our verkey from the
// message itself.
func AnonPack(keys *ssi.Keys, from, toBoxKey string, src []byte) (dst []byte, err error) {
	defer err2.Handle(&err, "anon pack")

	recipient := try.To1(boxKey(toBoxKey))
	p := Pipe{Keys: keys, In: from}
	return box.SealAnonymous(nil, p.signed(src), recipient, rand.Reader)
}

// AnonUnpack opens a sealed box to our DID and returns the payload and the
// verkey which signed it.
func AnonUnpack(keys *ssi.Keys, did string, src []byte) (dst []byte, vk string, err error) {
	defer err2.Handle(&err, "anon unpack")

	pub, priv, err := keys.BoxKeys(did)
	try.To(err)
	inner, ok := box.OpenAnonymous(nil, src, pub, priv)
	if !ok {
		return nil, "", vcxerr.New(vcxerr.VerificationFailed, "cannot open sealed box")
	}
	return openSigned(inner, "")
}
