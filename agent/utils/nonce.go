package utils

import (
	"crypto/rand"
	"math"
	"math/big"
	"strconv"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

func gen(limit *big.Int) *big.Int {
	r, err := rand.Int(rand.Reader, limit)
	if err != nil {
		panic("cannot create nonce")
	}
	return r
}

// NewNonce generates new uint64 nonce with Go's crypto package
func NewNonce() uint64 {
	return gen(big.NewInt(math.MaxInt64)).Uint64()
}

// NewNonceStr generates new nonce with Go's crypto package, and returns value
// as string.
func NewNonceStr() string {
	return NonceToStr(NewNonce())
}

// NewBigNonceStr returns a 80 bit decimal nonce which is the size anoncreds
// proof requests use.
func NewBigNonceStr() string {
	limit := new(big.Int).Lsh(big.NewInt(1), 80)
	return gen(limit).String()
}

// UUID generates new nonce with Go's crypto package, and returns value
// as string.
func UUID() string {
	return uuid.New().String()
}

func NonceToStr(n uint64) string {
	s := strconv.FormatUint(n, 10)
	return s
}

func NonceNum(s string) uint64 {
	sn := s
	if sn == "" {
		sn = "0"
	}
	n, err := strconv.ParseUint(sn, 10, 64)
	if err != nil {
		glog.Warning("Error nonce conversion! Using zero")
		n = 0
	}
	return n
}

// IsDecimal tells if s is a non empty string of decimal digits.
func IsDecimal(s string) bool {
	if s == "" {
		return false
	}
	_, ok := new(big.Int).SetString(s, 10)
	return ok
}
