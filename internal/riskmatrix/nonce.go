package riskmatrix

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateNonce returns "<timestamp>-<8 base36 chars>". The random suffix
// comes from crypto/rand, not math/rand: the nonce flows into the
// HMAC-signed record, so it must not be guessable.
func GenerateNonce(timestampMs int64) (string, error) {
	suffix, err := randomBase36(8)
	if err != nil {
		return "", fmt.Errorf("riskmatrix: generating nonce: %w", err)
	}
	return fmt.Sprintf("%d-%s", timestampMs, suffix), nil
}

func randomBase36(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = base36Alphabet[idx.Int64()]
	}
	return string(out), nil
}
