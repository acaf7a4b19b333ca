package riskmatrix

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// BuildSigningRecord composes the exact `||`-delimited byte sequence both
// sides HMAC. Every argument must already be in its final stringified
// form (serializedParams canonicalized, rawFingerprintJSON in literal
// platform/renderer/audio key order). BuildSigningRecord does no further
// transformation, since the slightest deviation here invalidates the
// signature on the server.
func BuildSigningRecord(timestampMs int64, nonce, method, path, serializedParams string, riskScore int, rawFingerprintJSON string) string {
	return strings.Join([]string{
		fmt.Sprintf("%d", timestampMs),
		nonce,
		strings.ToUpper(method),
		path,
		serializedParams,
		fmt.Sprintf("%d", riskScore),
		rawFingerprintJSON,
	}, "||")
}

// HMACHex computes HMAC-SHA256 of record under the 64-hex session key,
// parsed as 32 raw bytes, and returns lowercase hex.
func HMACHex(sessionKey, record string) (string, error) {
	keyBytes, err := hex.DecodeString(sessionKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSessionKey, err)
	}
	mac := hmac.New(sha256.New, keyBytes)
	mac.Write([]byte(record))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
