package stream

import (
	"crypto/aes"
	"crypto/cipher"
	"io"

	"github.com/Tnze/go-mc/net/CFB8"
)

// Encryption is the AES/CFB8 cipher pair of one connection. The shared
// secret is both key and IV.
type Encryption struct {
	enc cipher.Stream
	dec cipher.Stream
}

func NewEncryption(secret []byte) (*Encryption, error) {
	if len(secret) != 16 {
		return nil, ErrInvalidSharedSecret
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	return &Encryption{
		enc: CFB8.NewCFB8Encrypt(block, append([]byte(nil), secret...)),
		dec: CFB8.NewCFB8Decrypt(block, append([]byte(nil), secret...)),
	}, nil
}

// Reader decrypts everything read from r.
func (e *Encryption) Reader(r io.Reader) io.Reader {
	return cipher.StreamReader{S: e.dec, R: r}
}

// Writer encrypts everything written to w.
func (e *Encryption) Writer(w io.Writer) io.Writer {
	return cipher.StreamWriter{S: e.enc, W: w}
}
