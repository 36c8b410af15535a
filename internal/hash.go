package internal

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const hashPrefix = "sha256:"

// HashText returns the SHA-256 digest of the text as "sha256:<hex>",
// suitable for the content.text_hash field.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hashPrefix + hex.EncodeToString(sum[:])
}

// VerifyText reports whether the digest matches the text. Digests with an
// unknown prefix are an error rather than a mismatch.
func VerifyText(text, digest string) (bool, error) {
	if !strings.HasPrefix(digest, hashPrefix) {
		return false, fmt.Errorf("unsupported digest %q: only %s digests are supported", digest, strings.TrimSuffix(hashPrefix, ":"))
	}
	want := HashText(text)
	return subtle.ConstantTimeCompare([]byte(want), []byte(digest)) == 1, nil
}
