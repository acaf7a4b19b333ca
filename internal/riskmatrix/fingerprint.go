package riskmatrix

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// RawFingerprint is the plaintext {platform, renderer, audio} object the
// engine signs and encrypts. Field order in the marshaled JSON must match
// this literal order: the server decrypts and re-derives the same bytes,
// so map-iteration-order encoding (encoding/json on a map[string]string)
// is not safe here.
type RawFingerprint struct {
	Platform string
	Renderer string
	Audio    string
}

// MarshalOrdered renders the fingerprint as `{"platform":...,"renderer":...,"audio":...}`
// with that exact key order, independent of encoding/json's map iteration.
func (f RawFingerprint) MarshalOrdered() string {
	enc := func(s string) string {
		b, _ := json.Marshal(s)
		return string(b)
	}
	return fmt.Sprintf(`{"platform":%s,"renderer":%s,"audio":%s}`, enc(f.Platform), enc(f.Renderer), enc(f.Audio))
}

// ErrInvalidSessionKey is returned when a session key cannot be parsed
// into the 32 raw key bytes / 16 raw IV bytes the AES envelope needs.
var ErrInvalidSessionKey = errors.New("riskmatrix: session key must be a 64-character hex string")

// deriveKeyAndIV: the key is the 64-hex session key parsed as 32 raw
// bytes; the IV is the first 32 hex characters of that same string parsed
// as 16 raw bytes (not a separately derived value). The server performs
// the same derivation.
func deriveKeyAndIV(sessionKey string) (key, iv []byte, err error) {
	if len(sessionKey) != 64 {
		return nil, nil, ErrInvalidSessionKey
	}
	key, err = hex.DecodeString(sessionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidSessionKey, err)
	}
	iv, err = hex.DecodeString(sessionKey[:32])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidSessionKey, err)
	}
	return key, iv, nil
}

// EncryptFingerprint AES-256-CBC/PKCS7-encrypts plaintext under the
// session key and returns base64.
func EncryptFingerprint(sessionKey, plaintext string) (string, error) {
	key, iv, err := deriveKeyAndIV(sessionKey)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("riskmatrix: new cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), block.BlockSize())
	out := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptFingerprint reverses EncryptFingerprint, for round-trip tests
// and for any host wanting to verify its own requests offline. Production
// verification lives on the server.
func DecryptFingerprint(sessionKey, ciphertextB64 string) (string, error) {
	key, iv, err := deriveKeyAndIV(sessionKey)
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("riskmatrix: base64 decode: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.New("riskmatrix: ciphertext is not a multiple of the block size")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("riskmatrix: new cipher: %w", err)
	}

	out := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, ciphertext)

	unpadded, err := pkcs7Unpad(out, block.BlockSize())
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("riskmatrix: empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("riskmatrix: invalid PKCS7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("riskmatrix: invalid PKCS7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
