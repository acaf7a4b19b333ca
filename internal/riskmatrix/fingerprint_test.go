package riskmatrix

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

const testSessionKey = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

func TestMarshalOrderedLiteralKeyOrder(t *testing.T) {
	fp := RawFingerprint{Platform: "Win32", Renderer: "N/A", Audio: "err_no_offline_context"}
	require.Equal(t, `{"platform":"Win32","renderer":"N/A","audio":"err_no_offline_context"}`, fp.MarshalOrdered())
}

func TestEncryptFingerprintRejectsBadKeyLength(t *testing.T) {
	_, err := EncryptFingerprint("tooshort", "{}")
	require.ErrorIs(t, err, ErrInvalidSessionKey)
}

func TestAESRoundTrip(t *testing.T) {
	plaintext := `{"platform":"Win32","renderer":"N/A","audio":"12.5"}`
	cipherText, err := EncryptFingerprint(testSessionKey, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, cipherText)

	decrypted, err := DecryptFingerprint(testSessionKey, cipherText)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestAESRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("decrypt(encrypt(x)) == x for any string", prop.ForAll(
		func(plaintext string) bool {
			cipherText, err := EncryptFingerprint(testSessionKey, plaintext)
			if err != nil {
				return false
			}
			decrypted, err := DecryptFingerprint(testSessionKey, cipherText)
			if err != nil {
				return false
			}
			return decrypted == plaintext
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
