package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_signal_bot/internal/domain"
)

func TestLedger_OpenCloseProfit(t *testing.T) {
	tests := []struct {
		name   string
		entry  string
		exit   string
		qty    string
		profit string
	}{
		{name: "gain", entry: "30000", exit: "31000", qty: "0.001", profit: "1"},
		{name: "loss", entry: "30000", exit: "29000", qty: "0.001", profit: "-1"},
		{name: "flat", entry: "100", exit: "100", qty: "2", profit: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(testSymbol)
			t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

			pos, err := l.Open(dec(tt.entry), dec(tt.qty), t0)
			require.NoError(t, err)
			assert.Equal(t, domain.SideBuy, pos.Side)
			assert.Equal(t, testSymbol, pos.Symbol)
			require.NotNil(t, l.Current())

			rec, err := l.Close(dec(tt.exit), t0.Add(time.Hour))
			require.NoError(t, err)
			assert.Nil(t, l.Current())
			assert.Equal(t, domain.TradeClose, rec.Kind)
			require.NotNil(t, rec.RealizedProfit)
			assert.True(t, rec.RealizedProfit.Equal(dec(tt.profit)), "profit %s", rec.RealizedProfit)
			require.NotNil(t, rec.EntryPrice)
			assert.True(t, rec.EntryPrice.Equal(dec(tt.entry)))
			assert.True(t, rec.Quantity.Equal(dec(tt.qty)))
		})
	}
}

func TestLedger_OpenWhileOpenConflicts(t *testing.T) {
	l := NewLedger(testSymbol)
	now := time.Now()
	_, err := l.Open(dec("30000"), dec("0.001"), now)
	require.NoError(t, err)

	_, err = l.Open(dec("31000"), dec("0.002"), now)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Current().EntryPrice.Equal(dec("30000")))
}

func TestLedger_CloseWhileFlat(t *testing.T) {
	l := NewLedger(testSymbol)
	_, err := l.Close(dec("30000"), time.Now())
	assert.ErrorIs(t, err, domain.ErrNoPosition)
	assert.Equal(t, 0, l.Len())
}

func TestLedger_RejectsNonPositiveInput(t *testing.T) {
	l := NewLedger(testSymbol)
	_, err := l.Open(dec("0"), dec("1"), time.Now())
	assert.Error(t, err)
	_, err = l.Open(dec("100"), dec("-1"), time.Now())
	assert.Error(t, err)
	assert.Nil(t, l.Current())

	_, err = l.Open(dec("100"), dec("1"), time.Now())
	require.NoError(t, err)
	_, err = l.Close(dec("0"), time.Now())
	assert.Error(t, err)
	assert.NotNil(t, l.Current())
}

func TestLedger_HistoryOrderAndRestart(t *testing.T) {
	l := NewLedger(testSymbol)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		_, err := l.Open(dec("100"), dec("1"), t0.Add(time.Duration(2*i)*time.Hour), WithReason(domain.ReasonSignal))
		require.NoError(t, err)
		_, err = l.Close(dec("110"), t0.Add(time.Duration(2*i+1)*time.Hour), WithReason(domain.ReasonManual))
		require.NoError(t, err)
	}

	collect := func() []domain.TradeRecord {
		var out []domain.TradeRecord
		for rec := range l.History() {
			out = append(out, rec)
		}
		return out
	}

	first := collect()
	require.Len(t, first, 6)
	for i, rec := range first {
		if i%2 == 0 {
			assert.Equal(t, domain.TradeOpen, rec.Kind)
			assert.Equal(t, domain.ReasonSignal, rec.Reason)
		} else {
			assert.Equal(t, domain.TradeClose, rec.Kind)
			assert.Equal(t, domain.ReasonManual, rec.Reason)
		}
		if i > 0 {
			assert.True(t, rec.Timestamp.After(first[i-1].Timestamp))
			assert.Greater(t, rec.ID, first[i-1].ID)
		}
	}

	// A second walk starts from the beginning again.
	assert.Equal(t, first, collect())

	// Early stop is honoured.
	n := 0
	for range l.History() {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestLedger_HistoryReturnsCopies(t *testing.T) {
	l := NewLedger(testSymbol)
	_, err := l.Open(dec("100"), dec("1"), time.Now())
	require.NoError(t, err)
	_, err = l.Close(dec("120"), time.Now())
	require.NoError(t, err)

	for rec := range l.History() {
		if rec.RealizedProfit != nil {
			*rec.RealizedProfit = dec("999")
		}
	}
	last, ok := l.Last()
	require.True(t, ok)
	assert.True(t, last.RealizedProfit.Equal(dec("20")))

	cur := l.Current()
	assert.Nil(t, cur)
}

func TestLedger_IterationSnapshot(t *testing.T) {
	l := NewLedger(testSymbol)
	_, err := l.Open(dec("100"), dec("1"), time.Now())
	require.NoError(t, err)

	seen := 0
	for range l.History() {
		seen++
		// Appending during iteration does not extend this walk.
		_, err := l.Close(dec("101"), time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, seen)
	assert.Equal(t, 2, l.Len())
}
