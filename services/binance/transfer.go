package binance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/omsfleet/binance-gateway/pkg/types"
)

// Transfer moves funds between the master account and a sub-account (or
// between two sub-accounts) via the universal transfer endpoint. Requires
// master credentials with sub-account transfer permission.
func (a *AccountClient) Transfer(ctx context.Context, req *types.TransferRequest) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer: %w", err)
	}
	if a.cred.Scope != types.ScopeMaster {
		return nil, fmt.Errorf("transfers require master credentials")
	}

	params := NewParams().
		SetOptional("fromEmail", req.FromEmail).
		SetOptional("toEmail", req.ToEmail).
		Set("fromAccountType", "SPOT").
		Set("toAccountType", "SPOT").
		Set("asset", req.Asset).
		Set("amount", req.Amount.String())

	return a.rest.Post(ctx, "/sapi/v1/sub-account/universalTransfer", params)
}
