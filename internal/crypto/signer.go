package crypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

const signatureLen = 64

// Keypair wraps an ed25519 private key with Solana-flavoured helpers.
type Keypair struct {
	private ed25519.PrivateKey
	public  string
}

func newKeypair(priv ed25519.PrivateKey) *Keypair {
	pub := priv.Public().(ed25519.PublicKey)
	return &Keypair{
		private: priv,
		public:  base58.Encode(pub),
	}
}

// PublicKey returns the base58-encoded public key (the wallet address).
func (k *Keypair) PublicKey() string {
	return k.public
}

// Sign returns the 64-byte ed25519 signature over data.
func (k *Keypair) Sign(data []byte) []byte {
	return ed25519.Sign(k.private, data)
}

// SignTransaction signs a serialized Solana transaction in place. The wire
// format is a compact-u16 signature count, the signature slots, then the
// message bytes. The fee payer's signature goes in slot 0.
func (k *Keypair) SignTransaction(tx []byte) ([]byte, error) {
	numSigs, offset, err := decodeCompactU16(tx)
	if err != nil {
		return nil, fmt.Errorf("crypto: parsing transaction: %w", err)
	}
	if numSigs == 0 {
		return nil, errors.New("crypto: transaction has no signature slots")
	}

	sigsEnd := offset + numSigs*signatureLen
	if sigsEnd > len(tx) {
		return nil, errors.New("crypto: transaction shorter than its signature table")
	}

	message := tx[sigsEnd:]
	sig := ed25519.Sign(k.private, message)

	signed := make([]byte, len(tx))
	copy(signed, tx)
	copy(signed[offset:offset+signatureLen], sig)
	return signed, nil
}

// decodeCompactU16 reads Solana's compact-u16 length prefix, returning the
// value and the number of bytes consumed.
func decodeCompactU16(data []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, errors.New("truncated compact-u16")
		}
		b := int(data[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, errors.New("compact-u16 too long")
}
