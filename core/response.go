package core

import "encoding/json"

// GatewayQueryResponse is the GraphQL envelope returned by the
// directory gateway.
type GatewayQueryResponse struct {
	Data struct {
		Transactions struct {
			Edges []struct {
				Node GatewayTransaction `json:"node"`
			} `json:"edges"`
		} `json:"transactions"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

func (r GatewayQueryResponse) Transactions() []GatewayTransaction {
	txs := make([]GatewayTransaction, 0, len(r.Data.Transactions.Edges))
	for _, edge := range r.Data.Transactions.Edges {
		txs = append(txs, edge.Node)
	}
	return txs
}

// rawResult mirrors Result but defers field decoding so the shape can
// be checked before values are trusted.
type rawResult struct {
	Messages json.RawMessage `json:"Messages"`
	Spawns   json.RawMessage `json:"Spawns"`
	Output   json.RawMessage `json:"Output"`
	Error    json.RawMessage `json:"Error"`
	GasUsed  json.RawMessage `json:"GasUsed"`
}

// ParseResult decodes a compute-endpoint result and validates it
// against the expected schema. A structurally invalid body is a
// ProtocolViolationError, never silently accepted.
func ParseResult(body []byte) (Result, error) {
	var raw rawResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return Result{}, NewProtocolViolationError("result is not a JSON object", err)
	}

	var result Result
	if len(raw.Messages) > 0 && string(raw.Messages) != "null" {
		if err := json.Unmarshal(raw.Messages, &result.Messages); err != nil {
			return Result{}, NewProtocolViolationError("result Messages is not a message list", err)
		}
	}
	if len(raw.Spawns) > 0 && string(raw.Spawns) != "null" {
		if err := json.Unmarshal(raw.Spawns, &result.Spawns); err != nil {
			return Result{}, NewProtocolViolationError("result Spawns is not a spawn list", err)
		}
	}
	if len(raw.Output) > 0 && string(raw.Output) != "null" {
		if err := json.Unmarshal(raw.Output, &result.Output); err != nil {
			return Result{}, NewProtocolViolationError("result Output is not an object", err)
		}
	}
	if len(raw.Error) > 0 && string(raw.Error) != "null" {
		if err := json.Unmarshal(raw.Error, &result.Error); err != nil {
			return Result{}, NewProtocolViolationError("result Error is undecodable", err)
		}
	}
	if len(raw.GasUsed) > 0 && string(raw.GasUsed) != "null" {
		if err := json.Unmarshal(raw.GasUsed, &result.GasUsed); err != nil {
			return Result{}, NewProtocolViolationError("result GasUsed is not a number", err)
		}
	}

	if result.Messages == nil {
		result.Messages = []OutboundMessage{}
	}
	if result.Spawns == nil {
		result.Spawns = []OutboundMessage{}
	}

	return result, nil
}
