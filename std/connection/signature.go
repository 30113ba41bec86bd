package connection

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// SigType of the connection signature.
const SigType = "signature/1.0/ed25519Sha512_single"

// SigExpiration is how old a connection signature can be.
const SigExpiration = 10 * time.Hour

// ConnectionSignature is a timestamped signature over the JSON of a
// Connection. SignedData is 8 bytes big endian unix time followed by the
// JSON.
type ConnectionSignature struct {
	Type       string `json:"@type"`
	SignedData string `json:"sig_data"`
	SignVerKey string `json:"signer"`
	Signature  string `json:"signature"`
}

// NewResponse signs the connection with the verkey, which must be in the
// keys' wallet.
func NewResponse(keys *ssi.Keys, verkey string, c *Connection, now time.Time) (r *Response, err error) {
	defer err2.Handle(&err, "build connection sign")

	connectionJSON := try.To1(json.Marshal(c))
	data := make([]byte, 8, 8+len(connectionJSON))
	binary.BigEndian.PutUint64(data, uint64(now.Unix()))
	data = append(data, connectionJSON...)

	signature := try.To1(keys.SignWithKey(verkey, data))
	return &Response{ConnectionSignature: &ConnectionSignature{
		Type:       SigType,
		SignedData: utils.EncodeB64(data),
		SignVerKey: verkey,
		Signature:  utils.EncodeB64(signature),
	}}, nil
}

// Verify checks that the response is signed by the verkey and not too old,
// and returns the signed Connection.
func (r *Response) Verify(verkey string, now time.Time) (c *Connection, err error) {
	defer err2.Handle(&err, "verify connection sign")

	cs := r.ConnectionSignature
	if cs == nil {
		return nil, vcxerr.New(vcxerr.InvalidJSON, "response without signature")
	}
	if cs.SignVerKey != verkey {
		return nil, vcxerr.New(vcxerr.VerificationFailed, "response signed by %s", cs.SignVerKey)
	}
	data, err := utils.DecodeB64(cs.SignedData)
	if err != nil || len(data) <= 8 {
		return nil, vcxerr.New(vcxerr.InvalidJSON, "missing or invalid signature data")
	}
	signature, err := utils.DecodeB64(cs.Signature)
	if err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "signature")
	}
	if !try.To1(ssi.Verify(verkey, data, signature)) {
		return nil, vcxerr.New(vcxerr.VerificationFailed, "connection signature")
	}

	timestamp := time.Unix(int64(binary.BigEndian.Uint64(data)), 0)
	diff := now.Sub(timestamp)
	if diff < 0 || diff > SigExpiration {
		glog.Errorln("connection signature timestamp is invalid:", timestamp)
		return nil, vcxerr.New(vcxerr.VerificationFailed, "signature time %s", timestamp)
	}
	glog.V(3).Info("verified connection signature w/ ts:", timestamp)

	c = new(Connection)
	if err := json.Unmarshal(data[8:], c); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "connection")
	}
	return c, nil
}
