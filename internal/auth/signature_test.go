package auth

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/smartbank-server/internal/model"
)

// wallet signs like a browser wallet: EIP-191 prefix, V in {27, 28}.
type wallet struct {
	key     *ecdsa.PrivateKey
	address model.Address
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{
		key:     key,
		address: model.Address(strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())),
	}
}

func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestVerifier_RecoverAndVerify(t *testing.T) {
	t.Parallel()

	v := NewVerifier()
	w := newWallet(t)
	msg := "SmartBank Authentication\n\nNonce: 0x01"
	sig := w.sign(t, msg)

	signer, err := v.Recover(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, w.address, signer)

	require.NoError(t, v.Verify(msg, sig, w.address))

	// Without prefix and with a 0/1 recovery id.
	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	raw[crypto.RecoveryIDOffset] -= 27
	require.NoError(t, v.Verify(msg, strings.TrimPrefix(hexutil.Encode(raw), "0x"), w.address))
}

func TestVerifier_BindsMessageAndSigner(t *testing.T) {
	t.Parallel()

	v := NewVerifier()
	w := newWallet(t)
	other := newWallet(t)
	sig := w.sign(t, "message A")

	require.ErrorIs(t, v.Verify("message B", sig, w.address), model.ErrInvalidSignature)
	require.ErrorIs(t, v.Verify("message A", sig, other.address), model.ErrInvalidSignature)

	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	for i := 0; i < crypto.RecoveryIDOffset; i++ {
		altered := append([]byte(nil), raw...)
		altered[i] ^= 0x01
		assert.ErrorIs(t, v.Verify("message A", hexutil.Encode(altered), w.address), model.ErrInvalidSignature,
			"byte %d altered", i)
	}
}

func TestVerifier_MalformedInput(t *testing.T) {
	t.Parallel()

	v := NewVerifier()
	w := newWallet(t)
	good := w.sign(t, "hello")

	badV, err := hexutil.Decode(good)
	require.NoError(t, err)
	badV[crypto.RecoveryIDOffset] = 5

	tests := []struct {
		name string
		sig  string
	}{
		{name: "empty", sig: ""},
		{name: "not hex", sig: "0xzz"},
		{name: "short", sig: good[:len(good)-2]},
		{name: "long", sig: good + "00"},
		{name: "bad recovery id", sig: hexutil.Encode(badV)},
		{name: "zero signature", sig: hexutil.Encode(make([]byte, 65))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, v.Verify("hello", tt.sig, w.address), model.ErrInvalidSignature)
		})
	}
}
