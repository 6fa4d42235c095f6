package roomid

import (
	"crypto/rand"
	"errors"
	"math/big"
	mathrand "math/rand"
	"strings"
)

// Alphabet excludes 0/O and 1/I so freshly generated room IDs survive being
// read off a screen and typed on a phone. Validation is wider: any
// alphanumeric ID of the right length is accepted, since rooms created by
// other clients may use the full character set.
const (
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	Length   = 6
)

// ErrInvalidRoomID is returned when input does not normalize to a valid room ID.
var ErrInvalidRoomID = errors.New("invalid room ID")

// Generate creates a random room ID. Collisions are not checked against the
// relay; a clash surfaces downstream as a connection error, which is rare
// enough to accept.
func Generate() string {
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		b.WriteByte(Alphabet[randomIndex(len(Alphabet))])
	}
	return b.String()
}

// Normalize trims whitespace and uppercases the input. Generation and
// join-by-typing both go through it, so room ID comparisons are case and
// whitespace insensitive. Normalize is idempotent.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Validate normalizes the input and checks shape. It returns the normalized
// ID, or ErrInvalidRoomID if the result is not exactly Length alphanumeric
// characters.
func Validate(s string) (string, error) {
	id := Normalize(s)
	if len(id) != Length {
		return "", ErrInvalidRoomID
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", ErrInvalidRoomID
		}
	}
	return id, nil
}

// randomIndex returns a random index below max, preferring crypto/rand and
// falling back to math/rand if the system source is unavailable.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return mathrand.Intn(max)
	}
	return int(n.Int64())
}
