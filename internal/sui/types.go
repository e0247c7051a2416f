package sui

import (
	"bytes"
	"encoding/json"
)

// CoinBalance is the result of suix_getBalance.
type CoinBalance struct {
	CoinType        string `json:"coinType"`
	CoinObjectCount int    `json:"coinObjectCount"`
	TotalBalance    string `json:"totalBalance"`
}

// TransactionBlockPage is the result of suix_queryTransactionBlocks.
type TransactionBlockPage struct {
	Data        []TransactionBlock `json:"data"`
	NextCursor  *string            `json:"nextCursor"`
	HasNextPage bool               `json:"hasNextPage"`
}

// TransactionBlock is a transaction with the options requested by the client.
type TransactionBlock struct {
	Digest         string          `json:"digest"`
	TimestampMs    string          `json:"timestampMs"`
	BalanceChanges []BalanceChange `json:"balanceChanges"`
	ObjectChanges  []ObjectChange  `json:"objectChanges"`
	Effects        *Effects        `json:"effects"`
}

// Effects carries the subset of transaction effects the client reads. Some nodes report
// balance changes only inside the effects.
type Effects struct {
	Status struct {
		Status string `json:"status"`
	} `json:"status"`
	BalanceChanges []BalanceChange `json:"balanceChanges"`
}

// BalanceChange is one coin balance change of a transaction.
type BalanceChange struct {
	Owner    Owner  `json:"owner"`
	CoinType string `json:"coinType"`
	Amount   string `json:"amount"`
}

// ObjectChange is a created/mutated/deleted object. Only counted, never interpreted.
type ObjectChange struct {
	Type       string `json:"type"`
	ObjectType string `json:"objectType"`
}

// Owner is a Sui object owner. The node encodes it either as a string ("Immutable") or as an
// object such as {"AddressOwner": "0x..."} or {"ConsensusAddressOwner": {"owner": "0x...", ...}}.
type Owner struct {
	Address string
	Kind    string
}

func (o *Owner) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &o.Kind)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for kind, v := range raw {
		o.Kind = kind
		switch kind {
		case "AddressOwner", "ObjectOwner":
			if err := json.Unmarshal(v, &o.Address); err != nil {
				return err
			}
		case "ConsensusAddressOwner":
			var consensus struct {
				Owner string `json:"owner"`
			}
			if err := json.Unmarshal(v, &consensus); err != nil {
				return err
			}
			o.Address = consensus.Owner
		default:
			// Shared and future variants carry no owning address.
		}
	}
	return nil
}
