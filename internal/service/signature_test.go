package service

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonalMessageHash(t *testing.T) {
	msg := "login:1700000000000"
	want := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)))
	assert.Equal(t, want, PersonalMessageHash(msg))

	// length prefix is the decimal byte length, not the rune count
	multi := "olá"
	want = crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n4" + multi))
	assert.Equal(t, want, PersonalMessageHash(multi))
}

func TestEthereumVerifier_RecoverAddress(t *testing.T) {
	w := newWallet(t)
	v := NewEthereumVerifier()
	msg := "login:1700000000000"

	sig := w.signRaw(t, msg)
	got, err := v.RecoverAddress(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, w.address, got)

	// recovery id 0/1 is accepted as well
	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	got, err = v.RecoverAddress(msg, raw)
	require.NoError(t, err)
	assert.Equal(t, w.address, got)

	// the caller's slice is not modified
	assert.GreaterOrEqual(t, sig[64], byte(27))
}

func TestEthereumVerifier_DifferentMessage(t *testing.T) {
	w := newWallet(t)
	sig := w.signRaw(t, "login:1")

	got, err := NewEthereumVerifier().RecoverAddress("login:2", sig)
	if err == nil {
		assert.NotEqual(t, w.address, got)
	}
}

func TestEthereumVerifier_Malformed(t *testing.T) {
	v := NewEthereumVerifier()

	_, err := v.RecoverAddress("m", make([]byte, 64))
	assert.Error(t, err)

	sig := newWallet(t).signRaw(t, "m")
	sig[64] = 29
	_, err = v.RecoverAddress("m", sig)
	assert.Error(t, err)

	_, err = v.RecoverAddress("m", make([]byte, SignatureLength))
	assert.Error(t, err, "zero r and s cannot be recovered")
}

func TestDecodeSignature(t *testing.T) {
	sig := newWallet(t).sign(t, "m")

	b, err := DecodeSignature(sig)
	require.NoError(t, err)
	assert.Len(t, b, SignatureLength)

	b, err = DecodeSignature(sig[2:])
	require.NoError(t, err)
	assert.Len(t, b, SignatureLength)

	_, err = DecodeSignature("0xzz")
	assert.Error(t, err)
	_, err = DecodeSignature(sig[:len(sig)-2])
	assert.Error(t, err)
	_, err = DecodeSignature("")
	assert.Error(t, err)
}
