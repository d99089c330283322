package orders

import (
	"crypto/rand"
	"time"
)

const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// FormatOrderNumber renders ORD-YYYYMMDD-XXXXXX for the UTC day of at.
func FormatOrderNumber(at time.Time, suffix string) string {
	return "ORD-" + at.UTC().Format("20060102") + "-" + suffix
}

func randomSuffix() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = orderNumberAlphabet[int(b[i])%len(orderNumberAlphabet)]
	}
	return string(b)
}
