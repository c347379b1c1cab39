// Package auth holds the proxy key pair and the services that confirm a
// player's identity.
package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"math/big"
)

// KeyBits is the size of the key vanilla servers use for the login handshake.
const KeyBits = 1024

// KeyPair is the RSA key pair clients encrypt their shared secret with.
type KeyPair struct {
	private *rsa.PrivateKey
	der     []byte
}

func GenerateKeyPair() (*KeyPair, error) {
	private, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, err
	}
	return NewKeyPair(private)
}

func NewKeyPair(private *rsa.PrivateKey) (*KeyPair, error) {
	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, err
	}
	return &KeyPair{private: private, der: der}, nil
}

// PublicKeyDER is the public key as sent in the encryption request.
func (k *KeyPair) PublicKeyDER() []byte {
	return k.der
}

func (k *KeyPair) PublicKey() *rsa.PublicKey {
	return &k.private.PublicKey
}

// Decrypt undoes the client's PKCS #1 v1.5 encryption.
func (k *KeyPair) Decrypt(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(nil, k.private, ciphertext)
}

// ServerHash is the digest the client and the session server agree on: the
// SHA-1 of server id, shared secret and public key, printed as a signed
// hexadecimal number.
func ServerHash(serverID string, secret, publicKey []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(secret)
	h.Write(publicKey)
	sum := h.Sum(nil)

	n := new(big.Int).SetBytes(sum)
	if sum[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(sum)*8)))
	}
	return n.Text(16)
}
