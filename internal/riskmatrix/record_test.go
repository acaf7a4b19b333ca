package riskmatrix

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

// TestEmptyGETRecord pins the exact record bytes for a GET with no
// params; the server builds the identical string, so this string is a
// wire contract, not a snapshot.
func TestEmptyGETRecord(t *testing.T) {
	rawFP := RawFingerprint{Platform: "N/A", Renderer: "N/A", Audio: "err_no_offline_context"}
	record := BuildSigningRecord(1700000000000, "1700000000000-abcd1234", "GET", "/api/ping", "", 0, rawFP.MarshalOrdered())

	require.Equal(t,
		`1700000000000||1700000000000-abcd1234||GET||/api/ping||||0||{"platform":"N/A","renderer":"N/A","audio":"err_no_offline_context"}`,
		record,
	)
}

func TestHMACDeterministic(t *testing.T) {
	record := "1700000000000||nonce-x||GET||/api/ping||||0||{}"
	a, err := HMACHex(testSessionKey, record)
	require.NoError(t, err)
	b, err := HMACHex(testSessionKey, record)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestHMACDeterministicProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("HMAC(record, key) is deterministic", prop.ForAll(
		func(record string) bool {
			a, err := HMACHex(testSessionKey, record)
			if err != nil {
				return false
			}
			b, err := HMACHex(testSessionKey, record)
			if err != nil {
				return false
			}
			return a == b
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestGenerateNonceFormat(t *testing.T) {
	nonce, err := GenerateNonce(1700000000000)
	require.NoError(t, err)
	require.Regexp(t, `^1700000000000-[0-9a-z]{8}$`, nonce)
}
