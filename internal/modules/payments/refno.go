package payments

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Reference numbers are human-readable and unique per tenant; the unique
// index is the backstop against the unlikely same-day collision.

const refAlphabet = "23456789ABCDEFGHJKMNPQRSTVWXYZ" // no 0/O, 1/I/L

func NewTransactionNumber(now time.Time) string {
	return "TXN-" + now.Format("20060102") + "-" + randRef(6)
}

func NewRefundNumber(now time.Time) string {
	return "RFN-" + now.Format("20060102") + "-" + randRef(6)
}

func NewIdempotencyKey() string {
	return randHex(16)
}

func randRef(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	out := make([]byte, n)
	for i, c := range b {
		out[i] = refAlphabet[int(c)%len(refAlphabet)]
	}
	return string(out)
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
