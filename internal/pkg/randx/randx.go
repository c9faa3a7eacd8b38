/*
Package randx generates cryptographically secure identifiers.

Connection IDs are short Base62 strings prefixed with "conn_"; storage object
keys and other long-lived IDs are UUIDs.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// ConnectionIDPrefix marks identifiers issued to live connections.
	ConnectionIDPrefix = "conn_"

	// ConnectionIDRawLength is the length of the random part of a connection ID.
	ConnectionIDRawLength = 12
)

var base62Len = big.NewInt(int64(len(Base62Chars)))

// Base62 returns n random characters from Base62Chars.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, base62Len)
		if err != nil {
			return "", fmt.Errorf("failed to generate random base62 character: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// ConnectionID returns a fresh live-connection identifier.
// It falls back to a UUID if the system random source fails.
func ConnectionID() string {
	raw, err := Base62(ConnectionIDRawLength)
	if err != nil {
		return ConnectionIDPrefix + uuid.NewString()
	}
	return ConnectionIDPrefix + raw
}

// IsValidConnectionID reports whether id has the shape produced by ConnectionID.
func IsValidConnectionID(id string) bool {
	raw, ok := strings.CutPrefix(id, ConnectionIDPrefix)
	if !ok {
		return false
	}

	if len(raw) != ConnectionIDRawLength {
		_, err := uuid.Parse(raw)
		return err == nil
	}

	for _, char := range raw {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}

// ObjectKey returns a storage key "<prefix>/<uuid><ext>".
func ObjectKey(prefix, ext string) string {
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)
}
