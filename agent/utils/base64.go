package utils

import "encoding/base64"

var b64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
	base64.RawStdEncoding,
}

// DecodeB64 decodes str in any of the base64 flavors peers use.
func DecodeB64(str string) (data []byte, err error) {
	for _, enc := range b64Encodings {
		if data, err = enc.DecodeString(str); err == nil {
			return data, nil
		}
	}
	return nil, err
}

// EncodeB64 encodes data with the padded standard encoding.
func EncodeB64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
