package room

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	CodeLength  = 5
	CodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := range CodeLength {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(CodeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = CodeCharset[num.Int64()]
	}
	return string(code), nil
}

// NormalizeCode upper-cases and trims user input, then checks length and charset.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != CodeLength {
		return "", fmt.Errorf("%w: want %d characters, got %d", ErrInvalidRoomCode, CodeLength, len(code))
	}
	for _, c := range code {
		if !strings.ContainsRune(CodeCharset, c) {
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidRoomCode, c)
		}
	}
	return code, nil
}
