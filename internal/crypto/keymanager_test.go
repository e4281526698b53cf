package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func generateSecret(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(priv), priv
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret, _ := generateSecret(t)

	blob, err := EncryptKey(secret, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	require.Equal(t, secret, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	secret, _ := generateSecret(t)

	blob, err := EncryptKey(secret, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "letmein")
	require.Error(t, err)
}

func TestEncryptRejectsEmptyPassword(t *testing.T) {
	secret, _ := generateSecret(t)
	_, err := EncryptKey(secret, "")
	require.Error(t, err)
}

func TestEncryptRejectsBadKey(t *testing.T) {
	_, err := EncryptKey("not-base58-!!!", "hunter2")
	require.Error(t, err)

	// Valid base58 but wrong length.
	_, err = EncryptKey(base58.Encode([]byte{1, 2, 3}), "hunter2")
	require.Error(t, err)
}

func TestLoadKeypairFromRawSecret(t *testing.T) {
	secret, priv := generateSecret(t)

	kp, err := LoadKeypair(KeyConfig{RawSecretKey: secret})
	require.NoError(t, err)

	pub := priv.Public().(ed25519.PublicKey)
	require.Equal(t, base58.Encode(pub), kp.PublicKey())
}

func TestLoadKeypairFromSeed(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)

	kp, err := LoadKeypair(KeyConfig{RawSecretKey: base58.Encode(seed)})
	require.NoError(t, err)

	pub := priv.Public().(ed25519.PublicKey)
	require.Equal(t, base58.Encode(pub), kp.PublicKey())
}

func TestLoadKeypairFromEncryptedFile(t *testing.T) {
	secret, priv := generateSecret(t)

	blob, err := EncryptKey(secret, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	kp, err := LoadKeypair(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)

	pub := priv.Public().(ed25519.PublicKey)
	require.Equal(t, base58.Encode(pub), kp.PublicKey())
}

func TestLoadKeypairNoSource(t *testing.T) {
	_, err := LoadKeypair(KeyConfig{})
	require.Error(t, err)
}
