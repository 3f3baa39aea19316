package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcess(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bold marker", "The upside is limited. FINAL TRANSACTION PROPOSAL: **BUY** with a tight stop.", Buy},
		{"plain marker", "final transaction proposal: sell", Sell},
		{"marker beats later token", "FINAL TRANSACTION PROPOSAL: **HOLD**\nSome would buy here.", Hold},
		{"last marker wins", "FINAL TRANSACTION PROPOSAL: BUY ... revised. FINAL TRANSACTION PROPOSAL: SELL", Sell},
		{"last token wins without marker", "We could Buy, but on balance we Sell.", Sell},
		{"word boundary", "The buyers are holding; sellers left.", Default},
		{"hyphenated words are ignored", "Buy-side desks fear a sell-off, so we Hold.", Hold},
		{"only hyphenated words", "A broad sell-off hit buy-side funds.", Default},
		{"hyphenated after standalone", "We would sell into the buy-the-dip crowd.", Sell},
		{"hyphenated marker is skipped", "FINAL TRANSACTION PROPOSAL: **BUY**\nFINAL TRANSACTION PROPOSAL: SELL-OFF risk is priced in.", Buy},
		{"empty text", "", Default},
		{"no token", "Wait and see.", Default},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Process(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Process(tt.text))
			assert.True(t, Valid(got))
		})
	}
}

func TestDefaultIsHold(t *testing.T) {
	assert.Equal(t, Hold, Default)
	assert.False(t, Valid("buy"))
}
