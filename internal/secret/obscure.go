// Package secret obscures stored host passwords.
//
// This is NOT encryption. The transform is an XOR against a fixed key followed by
// standard base64, so anyone with the registry file and this source can recover
// the password. It only keeps passwords from being readable at a glance. The key
// must not change: registries written by earlier releases depend on it.
package secret

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrDecode is returned when a stored secret cannot be turned back into text.
var ErrDecode = errors.New("stored password could not be decoded")

var key = [16]byte{
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
}

func xor(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ key[i%len(key)]
	}
	return out
}

// Obscure returns the storable form of plaintext. The result is deterministic.
func Obscure(plaintext string) string {
	return base64.StdEncoding.EncodeToString(xor([]byte(plaintext)))
}

// Reveal reverses Obscure. Malformed input yields an error wrapping ErrDecode.
func Reveal(stored string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	plain := xor(data)
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrDecode)
	}
	return string(plain), nil
}
