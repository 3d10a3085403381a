package chance

import (
	"crypto/rand"
	"math/big"
)

// floatBits is the resolution of Float64 draws: 2^53, the largest power
// of two whose reciprocal is exactly representable.
const floatBits = 1 << 53

// cryptoSource implements Source using crypto/rand.
//
// Invariant: all values produced are uniformly distributed over their
// stated interval.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: every value returned by Intn is in [0, n); every value
// returned by Float64 is in [0, 1).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "chance: Intn called with n <= 0" if
// n <= 0. Panics with "chance: crypto/rand failure: <err>" if
// crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("chance: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("chance: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Float64 returns a cryptographically secure random float64 in [0, 1).
//
// Panics with "chance: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Float64() float64 {
	val, err := rand.Int(rand.Reader, big.NewInt(floatBits))
	if err != nil {
		panic("chance: crypto/rand failure: " + err.Error())
	}
	return float64(val.Int64()) / floatBits
}
