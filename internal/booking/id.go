package booking

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	bookingIDPrefix = "SPT"
	base36Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	randomSuffixLen = 5
)

// NewBookingID builds a short shareable reference such as "SPTM7Q2K9ZA1B2C3".
// It is the prefix, the base36 millisecond timestamp and five random base36
// characters, uppercased.
func NewBookingID(now time.Time) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 36))

	max := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < randomSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		b.WriteByte(base36Alphabet[n.Int64()])
	}

	return bookingIDPrefix + strings.ToUpper(b.String())
}
