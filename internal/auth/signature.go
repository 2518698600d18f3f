package auth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dtroode/smartbank-server/internal/model"
)

const signatureSize = crypto.SignatureLength

// Verifier checks personal_sign (EIP-191) signatures.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// Recover returns the address that signed message.
func (v *Verifier) Recover(message, signatureHex string) (model.Address, error) {
	signatureHex = strings.TrimSpace(signatureHex)
	if !strings.HasPrefix(signatureHex, "0x") && !strings.HasPrefix(signatureHex, "0X") {
		signatureHex = "0x" + signatureHex
	}

	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
	}
	if len(sig) != signatureSize {
		return "", fmt.Errorf("%w: want %d bytes, got %d", model.ErrInvalidSignature, signatureSize, len(sig))
	}

	// Wallets produce V as 27/28; recovery expects 0/1.
	switch sig[crypto.RecoveryIDOffset] {
	case 0, 1:
	case 27, 28:
		sig[crypto.RecoveryIDOffset] -= 27
	default:
		return "", fmt.Errorf("%w: bad recovery id %d", model.ErrInvalidSignature, sig[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
	}

	return model.Address(strings.ToLower(crypto.PubkeyToAddress(*pub).Hex())), nil
}

// Verify succeeds only if signatureHex over message was produced by claimed.
func (v *Verifier) Verify(message, signatureHex string, claimed model.Address) error {
	signer, err := v.Recover(message, signatureHex)
	if err != nil {
		return err
	}
	if signer != claimed {
		return fmt.Errorf("%w: signer %s does not match %s", model.ErrInvalidSignature, signer.Short(), claimed.Short())
	}
	return nil
}
