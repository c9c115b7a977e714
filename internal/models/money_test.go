package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuantizeTruncatesTowardZero(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"100", "100"},
		{"100.005", "100"},
		{"100.009", "100"},
		{"100.01", "100.01"},
		{"99.999", "99.99"},
		{"0.001", "0"},
		{"-1.999", "-1.99"},
	}
	for _, tt := range tests {
		assert.True(t, d(tt.want).Equal(Quantize(d(tt.in))),
			"Quantize(%s) = %s, want %s", tt.in, Quantize(d(tt.in)), tt.want)
	}
}

func TestWalletAvailable(t *testing.T) {
	w := &Wallet{Balance: d("1000"), Locked: d("300")}
	assert.True(t, d("700").Equal(w.Available()))
	assert.True(t, w.CanSpend(d("700")))
	assert.False(t, w.CanSpend(d("700.01")))

	// Locked above balance never yields a negative available.
	w = &Wallet{Balance: d("100"), Locked: d("150")}
	assert.True(t, w.Available().IsZero())
	assert.False(t, w.CanSpend(d("0.01")))
}
