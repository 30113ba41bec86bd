package utils

import (
	"crypto/sha256"
	"math/big"
	"strconv"
)

// EncodeValue encodes a raw credential attribute value to the decimal string
// anoncreds signs. A value which parses to int32 encodes to itself, all other
// values encode to the sha256 hash of the value read as a big endian integer.
func EncodeValue(raw string) string {
	if i, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return strconv.FormatInt(i, 10)
	}
	h := sha256.Sum256([]byte(raw))
	return new(big.Int).SetBytes(h[:]).String()
}

// EncodedInt returns the encoded value as an int64 for predicate checks. The
// second return value is false for hashed values.
func EncodedInt(encoded string) (int64, bool) {
	i, err := strconv.ParseInt(encoded, 10, 32)
	if err != nil {
		return 0, false
	}
	return i, true
}
