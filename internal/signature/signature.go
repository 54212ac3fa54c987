// Package signature verifies OpenPGP detached signatures over downloaded
// archives.
package signature

import (
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// ErrBadSignature is returned when a signature does not verify against the keyring.
var ErrBadSignature = errors.New("bad signature")

// VerifyDetached checks the armored detached signature at signaturePath
// over signedPath using the armored public keyring at keyringPath. It
// returns a description of the signing key.
func VerifyDetached(keyringPath, signedPath, signaturePath string) (string, error) {
	keyFile, err := os.Open(keyringPath)
	if err != nil {
		return "", fmt.Errorf("failed to open keyring: %w", err)
	}
	defer keyFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read keyring %s: %w", keyringPath, err)
	}

	signed, err := os.Open(signedPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", signedPath, err)
	}
	defer signed.Close()

	sig, err := os.Open(signaturePath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature: %w", err)
	}
	defer sig.Close()

	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, signed, sig, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrBadSignature, signedPath, err)
	}
	return describe(signer), nil
}

func describe(e *openpgp.Entity) string {
	if e == nil {
		return "unknown key"
	}
	if id := e.PrimaryIdentity(); id != nil {
		return id.Name
	}
	return e.PrimaryKey.KeyIdString()
}
