package service

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// PinDigester turns a raw PIN into the stored one-way digest. It must be
// deterministic: the same PIN always yields the same digest.
type PinDigester interface {
	Digest(pin string) string
}

type Sha3Digester struct {
	pepper []byte
}

// NewSha3Digester returns a SHA3-256 digester; pepper is mixed into every
// digest and may be empty.
func NewSha3Digester(pepper string) *Sha3Digester {
	return &Sha3Digester{pepper: []byte(pepper)}
}

func (d *Sha3Digester) Digest(pin string) string {
	h := sha3.New256()
	h.Write(d.pepper)
	h.Write([]byte(pin))
	return hex.EncodeToString(h.Sum(nil))
}

func pinMatches(d PinDigester, digest, pin string) bool {
	return subtle.ConstantTimeCompare([]byte(d.Digest(pin)), []byte(digest)) == 1
}
