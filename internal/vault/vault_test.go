package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hexKey = "6368616e676520746869732070617373776f726420746f20612073656372657421" // 33 bytes, invalid

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := New("correct horse battery staple")
	require.NoError(t, err)

	ciphertext, nonce, err := box.Seal("1//refresh-token-value")
	require.NoError(t, err)
	assert.NotEqual(t, "1//refresh-token-value", ciphertext)

	plaintext, err := box.Open(ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, "1//refresh-token-value", plaintext)
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	box1, err := New("first-passphrase")
	require.NoError(t, err)
	box2, err := New("second-passphrase")
	require.NoError(t, err)

	ciphertext, nonce, err := box1.Seal("secret")
	require.NoError(t, err)

	_, err = box2.Open(ciphertext, nonce)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	box, err := New("passphrase")
	require.NoError(t, err)

	ciphertext, nonce, err := box.Seal("secret")
	require.NoError(t, err)

	_, err = box.Open("AAAA"+ciphertext[4:], nonce)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNewRejectsEmptyKey(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNonHexKeyIsStretched(t *testing.T) {
	// Not valid 32-byte hex: falls back to Argon2id stretching instead of
	// failing.
	box, err := New(hexKey)
	require.NoError(t, err)

	ciphertext, nonce, err := box.Seal("x")
	require.NoError(t, err)
	out, err := box.Open(ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}
