package service

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"

	"github.com/andreval74/xcafe/internal/domain"
)

// SignatureLength is the size of an r||s||v secp256k1 signature
const SignatureLength = 65

const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// SignatureVerifier recovers the signer of a personal_sign message
type SignatureVerifier interface {
	RecoverAddress(message string, signature []byte) (domain.Address, error)
}

// EthereumVerifier implements EIP-191 personal_sign recovery over secp256k1
type EthereumVerifier struct{}

// NewEthereumVerifier creates the production signature verifier
func NewEthereumVerifier() EthereumVerifier {
	return EthereumVerifier{}
}

// PersonalMessageHash returns keccak256("\x19Ethereum Signed Message:\n" + len(message) + message)
func PersonalMessageHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(personalMessagePrefix))
	h.Write([]byte(strconv.Itoa(len(message))))
	h.Write([]byte(message))
	return h.Sum(nil)
}

// DecodeSignature parses a hex signature with or without the 0x prefix
func DecodeSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("signature is not hex: %w", err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}
	return sig, nil
}

// RecoverAddress returns the address whose key produced signature over the
// personal_sign hash of message. The recovery id may be 0/1 or 27/28.
func (EthereumVerifier) RecoverAddress(message string, signature []byte) (domain.Address, error) {
	if len(signature) != SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(signature))
	}

	sig := bytes.Clone(signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return "", fmt.Errorf("invalid recovery id %d", signature[64])
	}

	pub, err := crypto.SigToPub(PersonalMessageHash(message), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}
	return domain.ParseAddress(crypto.PubkeyToAddress(*pub).Hex())
}
