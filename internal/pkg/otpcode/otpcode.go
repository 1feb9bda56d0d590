// Package otpcode generates and shape-checks the 6-digit numeric codes used
// for email and phone verification.
package otpcode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
)

// Length is the number of digits in every code.
const Length = 6

var codeRe = regexp.MustCompile(`^\d{6}$`)

// Valid reports whether code is exactly six ASCII digits.
func Valid(code string) bool {
	return codeRe.MatchString(code)
}

// Generator produces codes from a random source.
type Generator struct {
	src    io.Reader
	legacy bool
}

// New returns a Generator reading from crypto/rand. With legacy set, codes
// fall in [100000, 999999] and never start with zero; otherwise the whole
// 000000..999999 space is used.
func New(legacy bool) *Generator {
	return &Generator{src: rand.Reader, legacy: legacy}
}

// NewWithSource is New with an explicit entropy source.
func NewWithSource(src io.Reader, legacy bool) *Generator {
	return &Generator{src: src, legacy: legacy}
}

func (g *Generator) Generate() (string, error) {
	lo, span := int64(0), int64(1_000_000)
	if g.legacy {
		lo, span = 100_000, 900_000
	}
	n, err := rand.Int(g.src, big.NewInt(span))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", lo+n.Int64()), nil
}
