package binance

import (
	"context"
	"encoding/json"
	"fmt"
)

// Listen keys identify a user-data WebSocket stream and expire unless
// renewed. These endpoints authenticate with the API key header alone;
// no signature is involved.

// StartUserStream requests a fresh listen key for the spot user-data stream.
func (a *AccountClient) StartUserStream(ctx context.Context) (string, error) {
	raw, err := a.rest.Do(ctx, "POST", "/api/v3/userDataStream", nil, false)
	if err != nil {
		return "", err
	}
	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to parse listen key response: %w", err)
	}
	if resp.ListenKey == "" {
		return "", fmt.Errorf("empty listen key in response")
	}
	return resp.ListenKey, nil
}

// KeepAliveUserStream renews a listen key. Binance expires keys after 60
// minutes; callers renew on a ~30 minute cadence.
func (a *AccountClient) KeepAliveUserStream(ctx context.Context, listenKey string) error {
	params := NewParams().Set("listenKey", listenKey)
	_, err := a.rest.Put(ctx, "/api/v3/userDataStream", params, false)
	return err
}

// CloseUserStream invalidates a listen key.
func (a *AccountClient) CloseUserStream(ctx context.Context, listenKey string) error {
	params := NewParams().Set("listenKey", listenKey)
	_, err := a.rest.Do(ctx, "DELETE", "/api/v3/userDataStream", params, false)
	return err
}

// StreamURL builds the WebSocket endpoint for a listen key.
func (a *AccountClient) StreamURL(listenKey string) string {
	return a.rest.hosts.Stream + "/ws/" + listenKey
}
