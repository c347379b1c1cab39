// Package stream turns a network connection into a stream of framed
// messages. Encryption and compression are layered in while the login
// handshake progresses.
package stream

import "errors"

var (
	ErrPendingBlock                = errors.New("a pushed back block is still pending")
	ErrZeroLengthFrame             = errors.New("zero length frame")
	ErrFrameTooLarge               = errors.New("frame too large")
	ErrDecompressionLengthMismatch = errors.New("decompressed length does not match the announced length")
	ErrUncompressedTooLarge        = errors.New("announced uncompressed length too large")
	ErrCorruptCompressedData       = errors.New("corrupt compressed data")
	ErrEncryptionEnabled           = errors.New("encryption is already enabled")
	ErrInvalidSharedSecret         = errors.New("shared secret must be 16 bytes")
)
