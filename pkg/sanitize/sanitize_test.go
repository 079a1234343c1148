package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"btc", "BTC"},
		{"  eth\t", "ETH"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Symbol(tt.in))
		})
	}
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", Email(" Alice@Example.COM "))
}

func TestLogString(t *testing.T) {
	assert.Equal(t, "buy BTC fake entry", LogString("buy BTC\r\nfake entry"))
	assert.Equal(t, []string{"a b", "c"}, LogStrings([]string{"a\nb", "c"}))
}
