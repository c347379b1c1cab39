package mc

import "errors"

var (
	ErrBufferUnderrun   = errors.New("buffer underrun")
	ErrMalformedVarInt  = errors.New("VarInt is too big")
	ErrStringTooLong    = errors.New("string is longer than allowed")
	ErrNegativeLength   = errors.New("negative length prefix")
	ErrDuplicateVersion = errors.New("protocol version already registered")
)
