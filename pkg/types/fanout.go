package types

// FanOutResult is the outcome of one operation on one account within a
// batch call. Exactly one of Data/Error is meaningful depending on Success.
type FanOutResult struct {
	Identifier string      `json:"identifier"`
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// FanOutBatch aggregates per-account results of a batch call.
// Successful + Failed == Total == number of requested identifiers, always.
type FanOutBatch struct {
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Results    []FanOutResult `json:"results"`
}

// Summary is the counts-only view carried by batch HTTP responses.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Summary extracts the counts from a batch.
func (b *FanOutBatch) Summary() Summary {
	return Summary{Total: b.Total, Successful: b.Successful, Failed: b.Failed}
}
