/*
Package randx provides generation of unique identifiers and fallback display names.

Connection and message identifiers are standard UUID v4 strings; guest display
names combine a fixed prefix with cryptographically random Base62 characters.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// guestNameRandomLength is the number of random characters in a guest name.
	guestNameRandomLength = 6
)

// GuestName generates a fallback display name with a "Guest_" prefix and
// random Base62 characters, used when a login carries an empty name and the
// server is configured to tolerate that.
func GuestName() (string, error) {
	result := make([]byte, guestNameRandomLength)

	for i := 0; i < guestNameRandomLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for guest name: %v", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return "Guest_" + string(result), nil
}
