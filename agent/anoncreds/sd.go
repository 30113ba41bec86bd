package anoncreds

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

// SigTypeSD is the signature type of the salted digest scheme.
const SigTypeSD = "SD"

const (
	saltLen   = 16
	secretLen = 32
)

// SD is the salted digest reference scheme. It has no state of its own.
type SD struct{}

// NewSD returns the reference scheme.
func NewSD() *SD {
	return &SD{}
}

func (*SD) SigType() string { return SigTypeSD }

type sdKey struct {
	Verkey     string   `json:"verkey"`
	AttrNames  []string `json:"attr_names"`
	Revocation bool     `json:"revocation"`
}

func (k *sdKey) pub() ed25519.PublicKey {
	b, _ := base58.Decode(k.Verkey)
	return ed25519.PublicKey(b)
}

func parseCredDef(cd *pool.CredDef) (k *sdKey, err error) {
	if cd == nil {
		return nil, vcxerr.New(vcxerr.NotFound, "cred def missing")
	}
	if cd.Type != SigTypeSD {
		return nil, vcxerr.New(vcxerr.UnknownCryptoMethod, "signature type %q", cd.Type)
	}
	k = new(sdKey)
	if err := json.Unmarshal(cd.Value, k); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "cred def value")
	}
	if b, err := base58.Decode(k.Verkey); err != nil || len(b) != ed25519.PublicKeySize {
		return nil, vcxerr.New(vcxerr.UnknownCryptoMethod, "cred def key of %s", cd.ID)
	}
	return k, nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	try.To1(rand.Read(b))
	return b
}

func digest(name, salt, encoded string) string {
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte(AttrKey(name)))
	h.Write([]byte{0})
	h.Write([]byte(encoded))
	return hex.EncodeToString(h.Sum(nil))
}

func linkKey(ms MasterSecret, blindingFactor string) (ed25519.PrivateKey, error) {
	bf, err := base58.Decode(blindingFactor)
	if err != nil || len(bf) != secretLen || len(ms) != secretLen {
		return nil, vcxerr.New(vcxerr.InvalidOption, "master secret or blinding data")
	}
	seed := sha256.Sum256(append(append([]byte{}, ms...), bf...))
	return ed25519.NewKeyFromSeed(seed[:]), nil
}

func verifySig(pub ed25519.PublicKey, msg []byte, sig string) bool {
	s, err := base58.Decode(sig)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, msg, s)
}

func sign(priv ed25519.PrivateKey, msg []byte) string {
	return base58.Encode(ed25519.Sign(priv, msg))
}

func offerMsg(nonce, credDefID string) []byte {
	return []byte("offer|" + nonce + "|" + credDefID)
}

func blindedMsg(offerNonce string) []byte {
	return []byte("request|" + offerNonce)
}

func proofMsg(proofNonce, credSig string) []byte {
	return []byte("proof|" + proofNonce + "|" + credSig)
}

type signedContent struct {
	SchemaID  string            `json:"schema_id"`
	CredDefID string            `json:"cred_def_id"`
	RevID     string            `json:"rev_id"`
	BlindedMS string            `json:"blinded_ms"`
	Nonce     string            `json:"nonce"`
	Digests   map[string]string `json:"digests"`
}

func (c signedContent) bytes() []byte {
	return try.To1(json.Marshal(c))
}

func credDigests(c *Credential) (map[string]string, error) {
	digests := make(map[string]string, len(c.Values))
	for name, v := range c.Values {
		if utils.EncodeValue(v.Raw) != v.Encoded {
			return nil, vcxerr.New(vcxerr.InvalidAttributes, "encoding of %s", name)
		}
		salt, ok := c.Salts[AttrKey(name)]
		if !ok {
			return nil, vcxerr.New(vcxerr.InvalidAttributes, "salt of %s", name)
		}
		digests[AttrKey(name)] = digest(name, salt, v.Encoded)
	}
	return digests, nil
}

func (c *Credential) content(digests map[string]string) signedContent {
	return signedContent{
		SchemaID:  c.SchemaID,
		CredDefID: c.CredDefID,
		RevID:     c.RevID,
		BlindedMS: c.BlindedMS,
		Nonce:     c.Nonce,
		Digests:   digests,
	}
}

func (sd *SD) CreateCredentialDefinition(
	issuerDID string,
	schema *pool.Schema,
	tag string,
	supportRevocation bool,
) (cd *pool.CredDef, priv *CredDefPrivate, err error) {
	defer err2.Handle(&err, "create cred def")

	if schema == nil || schema.SeqNo == 0 || len(schema.AttrNames) == 0 {
		return nil, nil, vcxerr.New(vcxerr.InvalidOption, "schema is not on ledger")
	}
	if tag == "" {
		tag = "tag1"
	}
	seed := randomBytes(ed25519.SeedSize)
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	value := try.To1(json.Marshal(sdKey{
		Verkey:     base58.Encode(pub),
		AttrNames:  append([]string(nil), schema.AttrNames...),
		Revocation: supportRevocation,
	}))
	id := pool.CredDefID(issuerDID, SigTypeSD, schema.SeqNo, tag)
	cd = &pool.CredDef{
		Ver:      "1.0",
		ID:       id,
		SchemaID: schema.ID,
		Type:     SigTypeSD,
		Tag:      tag,
		Value:    value,
	}
	glog.V(3).Infoln("cred def created:", id)
	return cd, &CredDefPrivate{CredDefID: id, Type: SigTypeSD, Seed: seed}, nil
}

func (sd *SD) CreateMasterSecret() (ms MasterSecret, err error) {
	defer err2.Handle(&err, "master secret")
	return randomBytes(secretLen), nil
}

func privKey(cd *pool.CredDef, priv *CredDefPrivate) (ed25519.PrivateKey, error) {
	if priv == nil || priv.CredDefID != cd.ID || len(priv.Seed) != ed25519.SeedSize {
		return nil, vcxerr.New(vcxerr.InvalidOption, "private key of %s", cd.ID)
	}
	if priv.Type != SigTypeSD {
		return nil, vcxerr.New(vcxerr.UnknownCryptoMethod, "signature type %q", priv.Type)
	}
	return ed25519.NewKeyFromSeed(priv.Seed), nil
}

func (sd *SD) CreateCredentialOffer(cd *pool.CredDef, priv *CredDefPrivate) (o *Offer, err error) {
	defer err2.Handle(&err, "create offer")

	try.To1(parseCredDef(cd))
	key := try.To1(privKey(cd, priv))
	nonce := utils.NewBigNonceStr()
	return &Offer{
		SchemaID:            cd.SchemaID,
		CredDefID:           cd.ID,
		Nonce:               nonce,
		KeyCorrectnessProof: sign(key, offerMsg(nonce, cd.ID)),
	}, nil
}

func (sd *SD) CreateBlindedCredentialRequest(
	proverDID string,
	offer *Offer,
	cd *pool.CredDef,
	ms MasterSecret,
) (req *Request, meta *RequestMetadata, err error) {
	defer err2.Handle(&err, "create credential request")

	k := try.To1(parseCredDef(cd))
	if offer.CredDefID != cd.ID {
		return nil, nil, vcxerr.New(vcxerr.InvalidOption, "offer is for %s", offer.CredDefID)
	}
	if !verifySig(k.pub(), offerMsg(offer.Nonce, cd.ID), offer.KeyCorrectnessProof) {
		return nil, nil, vcxerr.New(vcxerr.VerificationFailed, "key correctness proof")
	}
	bf := base58.Encode(randomBytes(secretLen))
	link := try.To1(linkKey(ms, bf))
	nonce := utils.NewBigNonceStr()
	req = &Request{
		ProverDID: proverDID,
		CredDefID: cd.ID,
		BlindedMS: base58.Encode(link.Public().(ed25519.PublicKey)),
		BlindedMSCorrectnessProof: sign(link, blindedMsg(offer.Nonce)),
		Nonce:     nonce,
	}
	return req, &RequestMetadata{BlindingFactor: bf, Nonce: nonce, OfferNonce: offer.Nonce}, nil
}

func (sd *SD) IssueCredential(
	offer *Offer,
	req *Request,
	values AttrValues,
	cd *pool.CredDef,
	priv *CredDefPrivate,
	revID string,
) (c *Credential, err error) {
	defer err2.Handle(&err, "issue credential")

	k := try.To1(parseCredDef(cd))
	key := try.To1(privKey(cd, priv))
	if offer.CredDefID != cd.ID || req.CredDefID != cd.ID {
		return nil, vcxerr.New(vcxerr.InvalidOption, "request is not for %s", cd.ID)
	}
	blinded, err := base58.Decode(req.BlindedMS)
	if err != nil || !verifySig(blinded, blindedMsg(offer.Nonce), req.BlindedMSCorrectnessProof) {
		return nil, vcxerr.New(vcxerr.VerificationFailed, "blinded master secret proof")
	}
	try.To(CheckAttributes(k.AttrNames, values))
	if !k.Revocation {
		revID = ""
	}

	c = &Credential{
		SchemaID:  cd.SchemaID,
		CredDefID: cd.ID,
		RevID:     revID,
		Values:    make(AttrValues, len(values)),
		Salts:     make(map[string]string, len(values)),
		BlindedMS: req.BlindedMS,
		Nonce:     req.Nonce,
	}
	for name, v := range values {
		if v.Encoded == "" {
			v.Encoded = utils.EncodeValue(v.Raw)
		}
		c.Values[name] = v
		c.Salts[AttrKey(name)] = base58.Encode(randomBytes(saltLen))
	}
	digests := try.To1(credDigests(c))
	c.Signature = sign(key, c.content(digests).bytes())
	glog.V(3).Infoln("credential issued for", cd.ID)
	return c, nil
}

func (sd *SD) ProcessCredential(
	c *Credential,
	meta *RequestMetadata,
	cd *pool.CredDef,
	ms MasterSecret,
) (err error) {
	defer err2.Handle(&err, "process credential")

	k := try.To1(parseCredDef(cd))
	if c.CredDefID != cd.ID || c.SchemaID != cd.SchemaID {
		return vcxerr.New(vcxerr.InvalidOption, "credential is not for %s", cd.ID)
	}
	if c.Nonce != meta.Nonce {
		return vcxerr.New(vcxerr.VerificationFailed, "credential nonce")
	}
	link := try.To1(linkKey(ms, meta.BlindingFactor))
	blinded, _ := base58.Decode(c.BlindedMS)
	if !bytes.Equal(blinded, link.Public().(ed25519.PublicKey)) {
		return vcxerr.New(vcxerr.VerificationFailed, "credential is bound to other secret")
	}
	try.To(CheckAttributes(k.AttrNames, c.Values))
	digests := try.To1(credDigests(c))
	if !verifySig(k.pub(), c.content(digests).bytes(), c.Signature) {
		return vcxerr.New(vcxerr.VerificationFailed, "credential signature")
	}
	return nil
}
