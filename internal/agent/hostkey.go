package agent

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

// LoadOrCreateHostKey returns the ed25519 host key at path, generating and
// persisting a new one if none exists yet. Grounded on the teacher's
// genHostKeyPair/encodePrivateKeyToPEM/createKeyPairIfMissing in boxer.go,
// adapted from a per-sandbox identity to buckle's one stable per-node
// fingerprint.
func LoadOrCreateHostKey(path string) (ssh.PublicKey, error) {
	if data, err := os.ReadFile(path); err == nil {
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to parse host key at %s", path)
		}
		return signer.PublicKey(), nil
	}

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to generate host key")
	}

	pemBlock, err := ssh.MarshalPrivateKey(privateKey, "trunk node-agent host key")
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to marshal host key")
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(pemBlock), 0o600); err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to write host key to %s", path)
	}

	sshPublicKey, err := ssh.NewPublicKey(publicKey)
	if err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to convert host key to SSH public key")
	}
	if err := os.WriteFile(path+".pub", ssh.MarshalAuthorizedKey(sshPublicKey), 0o644); err != nil {
		return nil, trunkerr.Wrap(trunkerr.KindIO, err, "failed to write host public key to %s.pub", path)
	}
	return sshPublicKey, nil
}

// Fingerprint renders pub's SHA256 fingerprint, the value Status.Ping
// returns so callers can detect when they've reached a different node.
func Fingerprint(pub ssh.PublicKey) string {
	return ssh.FingerprintSHA256(pub)
}
