package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolio_CloneIsDeep(t *testing.T) {
	p := NewPortfolio("u1", decimal.NewFromInt(1000), time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))
	p.Holdings["BTC"] = &Holding{Quantity: decimal.NewFromInt(1), AverageCost: decimal.NewFromInt(500)}
	p.Transactions = append(p.Transactions, Transaction{Type: TransactionTypeBuy, Symbol: "BTC"})

	c := p.Clone()
	c.CurrentBalance = decimal.Zero
	c.Holdings["BTC"].Quantity = decimal.NewFromInt(2)
	c.Holdings["ETH"] = &Holding{Quantity: decimal.NewFromInt(3)}
	c.Transactions[0].Symbol = "XXX"
	c.Transactions = append(c.Transactions, Transaction{Type: TransactionTypeSell, Symbol: "BTC"})

	assert.True(t, p.CurrentBalance.Equal(decimal.NewFromInt(1000)))
	require.Len(t, p.Holdings, 1)
	assert.True(t, p.Holdings["BTC"].Quantity.Equal(decimal.NewFromInt(1)))
	require.Len(t, p.Transactions, 1)
	assert.Equal(t, "BTC", p.Transactions[0].Symbol)
	assert.Len(t, c.Transactions, 2)
}
