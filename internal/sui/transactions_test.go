package sui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/suihistory/internal/domain"
	"github.com/mtlprog/suihistory/internal/ledger"
)

const testAddress = "0x00000000000000000000000000000000000000000000000000000000000a11ce"

const pageJSON = `{
  "jsonrpc": "2.0",
  "id": 1,
  "result": {
    "data": [
      {
        "digest": "Dig1",
        "timestampMs": "1767268800000",
        "balanceChanges": [
          {"owner": {"AddressOwner": "0x00000000000000000000000000000000000000000000000000000000000a11ce"}, "coinType": "0x2::sui::SUI", "amount": "-1002000000"},
          {"owner": {"AddressOwner": "0xb0b"}, "coinType": "0x2::sui::SUI", "amount": "1000000000"}
        ],
        "objectChanges": [{"type": "mutated", "objectType": "0x2::coin::Coin<0x2::sui::SUI>"}]
      },
      {
        "digest": "Dig2",
        "timestampMs": "1767265200000",
        "objectChanges": [{"type": "created"}, {"type": "mutated"}]
      },
      {
        "digest": "Dig3",
        "balanceChanges": [
          {"owner": "Immutable", "coinType": "0x2::sui::SUI", "amount": "5"}
        ]
      }
    ],
    "nextCursor": "Dig3",
    "hasNextPage": true
  }
}`

type capturedRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func TestListBalanceEvents(t *testing.T) {
	var req capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		w.Write([]byte(pageJSON))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, time.Millisecond)
	page, err := client.ListBalanceEvents(context.Background(), testAddress, ledger.Outgoing, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Method != "suix_queryTransactionBlocks" {
		t.Errorf("method = %s", req.Method)
	}
	if len(req.Params) != 4 {
		t.Fatalf("params = %d, want 4", len(req.Params))
	}
	var query transactionQuery
	if err := json.Unmarshal(req.Params[0], &query); err != nil {
		t.Fatalf("decoding query: %v", err)
	}
	if query.Filter["FromAddress"] != testAddress {
		t.Errorf("filter = %v, want FromAddress", query.Filter)
	}
	if !query.Options.ShowBalanceChanges || !query.Options.ShowEffects || !query.Options.ShowObjectChanges {
		t.Errorf("options = %+v", query.Options)
	}
	if string(req.Params[1]) != "null" {
		t.Errorf("cursor param = %s, want null", req.Params[1])
	}
	if string(req.Params[2]) != "100" || string(req.Params[3]) != "true" {
		t.Errorf("limit/order = %s/%s, want 100/true", req.Params[2], req.Params[3])
	}

	if !page.HasMore || page.NextCursor != "Dig3" {
		t.Errorf("page cursor = %q hasMore = %v", page.NextCursor, page.HasMore)
	}
	if len(page.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(page.Events))
	}

	first := page.Events[0]
	if first.ID != "Dig1" || !first.HasBalanceChanges || first.ObjectChangeCount != 1 {
		t.Errorf("first = %+v", first)
	}
	if !first.Timestamp.Equal(time.UnixMilli(1767268800000)) {
		t.Errorf("timestamp = %v", first.Timestamp)
	}
	if !first.BalanceChanges[0].Amount.Equal(decimal.NewFromInt(-1002000000)) {
		t.Errorf("amount = %s", first.BalanceChanges[0].Amount)
	}

	objectsOnly := page.Events[1]
	if objectsOnly.HasBalanceChanges || objectsOnly.ObjectChangeCount != 2 {
		t.Errorf("objects-only = %+v", objectsOnly)
	}

	noTimestamp := page.Events[2]
	if !noTimestamp.Timestamp.IsZero() || noTimestamp.BalanceChanges[0].Owner != "" {
		t.Errorf("no-timestamp = %+v", noTimestamp)
	}

	events, err := ledger.Normalize(page.Events, testAddress, domain.SUIAsset())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(events) != 1 || !events[0].Delta.Equal(decimal.RequireFromString("-1.002")) {
		t.Errorf("normalized = %+v", events)
	}
}

func TestListBalanceEventsIncomingWithCursor(t *testing.T) {
	var req capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"data":[],"nextCursor":null,"hasNextPage":false}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, time.Millisecond)
	page, err := client.ListBalanceEvents(context.Background(), testAddress, ledger.Incoming, "Dig3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasMore || page.NextCursor != "" || len(page.Events) != 0 {
		t.Errorf("page = %+v", page)
	}

	var query transactionQuery
	json.Unmarshal(req.Params[0], &query)
	if query.Filter["ToAddress"] != testAddress {
		t.Errorf("filter = %v, want ToAddress", query.Filter)
	}
	if string(req.Params[1]) != `"Dig3"` {
		t.Errorf("cursor = %s, want \"Dig3\"", req.Params[1])
	}
}

func TestBalanceChangesFromEffects(t *testing.T) {
	tx := TransactionBlock{
		Digest:      "D",
		TimestampMs: "1000",
		Effects: &Effects{BalanceChanges: []BalanceChange{
			{Owner: Owner{Address: "0xa"}, CoinType: "0x2::sui::SUI", Amount: "7"},
		}},
	}
	ev := toRawEvent(tx)
	if !ev.HasBalanceChanges || len(ev.BalanceChanges) != 1 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestFetchBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req capturedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "suix_getBalance" {
			t.Errorf("method = %s", req.Method)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"coinType":"0x2::sui::SUI","coinObjectCount":2,"totalBalance":"2500000000"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, time.Millisecond)
	bal, err := client.FetchBalance(context.Background(), testAddress, domain.SUIAsset())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bal.Amount.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("amount = %s, want 2.5", bal.Amount)
	}
	if !bal.Raw.Equal(decimal.NewFromInt(2500000000)) {
		t.Errorf("raw = %s", bal.Raw)
	}
}

func TestFetchBalanceBadAmount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"totalBalance":"lots"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, time.Millisecond)
	if _, err := client.FetchBalance(context.Background(), testAddress, domain.SUIAsset()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOwnerUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    string
		address string
	}{
		{"address owner", `{"AddressOwner": "0xa"}`, "AddressOwner", "0xa"},
		{"object owner", `{"ObjectOwner": "0xb"}`, "ObjectOwner", "0xb"},
		{"consensus address owner", `{"ConsensusAddressOwner": {"owner": "0xc", "start_version": 7}}`, "ConsensusAddressOwner", "0xc"},
		{"shared", `{"Shared": {"initial_shared_version": 1}}`, "Shared", ""},
		{"unknown variant", `{"SomethingNew": {"x": 1}}`, "SomethingNew", ""},
		{"immutable", `"Immutable"`, "Immutable", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Owner
			if err := json.Unmarshal([]byte(tt.input), &o); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if o.Kind != tt.kind || o.Address != tt.address {
				t.Errorf("owner = %+v, want kind %q address %q", o, tt.kind, tt.address)
			}
		})
	}
}
