package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderSubject(t *testing.T) {
	subject := OrderSubject(ActionOrderCreate, "sub1@example.com", "futures", "BTCUSDT")
	assert.Equal(t, "orders.create.sub1@example_com.futures.BTCUSDT", subject)
}

func TestTransferSubjectDefaultsToMaster(t *testing.T) {
	assert.Equal(t, "transfer.request.master.sub1@example_com", TransferSubject("", "sub1@example.com"))
	assert.Equal(t, "transfer.request.sub1@example_com.master", TransferSubject("sub1@example.com", ""))
}

func TestBalanceSubject(t *testing.T) {
	assert.Equal(t, "balance.update.42", BalanceSubject("42"))
}

func TestStreamSubject(t *testing.T) {
	assert.Equal(t, "stream.event.sub1@example_com", StreamSubject("sub1@example.com"))
}

// Identifiers must never leak NATS subject structure characters.
func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a.b.c", "a_b_c"},
		{"wild*card", "wild_card"},
		{"tail>", "tail_"},
		{"with space", "with_space"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize(tt.in))
		})
	}
}
