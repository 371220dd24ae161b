package bus

import "fmt"

// Subject naming convention:
// {action}.{account}.{market}.{symbol}
// Examples:
//   orders.create.sub1@example.com.futures.BTCUSDT
//   transfer.request.master.sub1@example.com
//   balance.update.sub1@example.com

const (
	ActionOrderCreate     = "orders.create"
	ActionOrderCancel     = "orders.cancel"
	ActionTransferRequest = "transfer.request"
	ActionBalanceUpdate   = "balance.update"
	ActionStreamEvent     = "stream.event"
)

// StreamSubject builds the subject for a relayed user-data stream event.
func StreamSubject(account string) string {
	return fmt.Sprintf("%s.%s", ActionStreamEvent, sanitize(account))
}

// OrderSubject builds the subject for an order event.
func OrderSubject(action, account, market, symbol string) string {
	return fmt.Sprintf("%s.%s.%s.%s", action, sanitize(account), market, symbol)
}

// TransferSubject builds the subject for a transfer event. Empty account
// sides mean the master account.
func TransferSubject(from, to string) string {
	if from == "" {
		from = "master"
	}
	if to == "" {
		to = "master"
	}
	return fmt.Sprintf("%s.%s.%s", ActionTransferRequest, sanitize(from), sanitize(to))
}

// BalanceSubject builds the subject for a balance refresh event.
func BalanceSubject(account string) string {
	return fmt.Sprintf("%s.%s", ActionBalanceUpdate, sanitize(account))
}

// sanitize keeps identifiers token-safe: NATS treats '.' and '*' and '>'
// as subject structure, and emails contain dots.
func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '.', '*', '>', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
