package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/gateway"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/gateway/store"
)

func newService() *gateway.Service {
	return gateway.NewService(store.NewMemory())
}

func TestPutGetRoundTrip(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Execute(ctx, gateway.Request{
		Operation: gateway.OpPut,
		Table:     "profiles",
		Key:       map[string]any{"nationalId": "902531234V"},
		Item:      map[string]any{"nationalId": "902531234V", "fullName": "Nimal Perera"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	resp, err := svc.Execute(ctx, gateway.Request{
		Operation:      gateway.OpGet,
		Table:          "profiles",
		Key:            map[string]any{"nationalId": "902531234V"},
		ConsistentRead: true,
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0]["fullName"] != "Nimal Perera" {
		t.Fatalf("unexpected items: %v", resp.Items)
	}
}

func TestGetAbsentIsNotAnError(t *testing.T) {
	svc := newService()

	resp, err := svc.Execute(context.Background(), gateway.Request{
		Operation: gateway.OpGet,
		Table:     "profiles",
		Key:       map[string]any{"nationalId": "missing"},
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !resp.Success || len(resp.Items) != 0 {
		t.Fatalf("expected empty successful response, got %+v", resp)
	}
}

func TestUpdateWithReservedFieldName(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	key := map[string]any{"nationalId": "902531234V"}

	if _, err := svc.Execute(ctx, gateway.Request{
		Operation: gateway.OpPut,
		Table:     "profiles",
		Key:       key,
		Item:      map[string]any{"nationalId": "902531234V", "status": "pending"},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	// "status" is a reserved word in the store's expression language; the
	// alias scheme must keep it out of the expression text.
	if _, err := svc.Execute(ctx, gateway.Request{
		Operation: gateway.OpUpdate,
		Table:     "profiles",
		Key:       key,
		Updates:   map[string]any{"status": "verified", "fullName": "Nimal Perera"},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	resp, err := svc.Execute(ctx, gateway.Request{Operation: gateway.OpGet, Table: "profiles", Key: key})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.Items[0]["status"] != "verified" || resp.Items[0]["fullName"] != "Nimal Perera" {
		t.Fatalf("update not applied: %v", resp.Items[0])
	}
}

func TestUpdateCreatesAbsentItem(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	key := map[string]any{"userId": "u-1"}

	if _, err := svc.Execute(ctx, gateway.Request{
		Operation: gateway.OpUpdate,
		Table:     "sessions",
		Key:       key,
		Updates:   map[string]any{"profileComplete": true},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	resp, err := svc.Execute(ctx, gateway.Request{Operation: gateway.OpGet, Table: "sessions", Key: key})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0]["profileComplete"] != true || resp.Items[0]["userId"] != "u-1" {
		t.Fatalf("unexpected item: %v", resp.Items)
	}
}

func TestDelete(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	key := map[string]any{"nationalId": "902531234V"}

	if _, err := svc.Execute(ctx, gateway.Request{
		Operation: gateway.OpPut,
		Table:     "profiles",
		Key:       key,
		Item:      map[string]any{"nationalId": "902531234V"},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := svc.Execute(ctx, gateway.Request{Operation: gateway.OpDelete, Table: "profiles", Key: key}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	resp, err := svc.Execute(ctx, gateway.Request{Operation: gateway.OpGet, Table: "profiles", Key: key})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("item survived delete: %v", resp.Items)
	}
}

func TestScanFilterWithReservedFieldName(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		status := "pending"
		if i%2 == 0 {
			status = "verified"
		}
		if _, err := svc.Execute(ctx, gateway.Request{
			Operation: gateway.OpPut,
			Table:     "profiles",
			Key:       map[string]any{"nationalId": fmt.Sprintf("id-%d", i)},
			Item:      map[string]any{"nationalId": fmt.Sprintf("id-%d", i), "status": status},
		}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	resp, err := svc.Execute(ctx, gateway.Request{
		Operation: gateway.OpScan,
		Table:     "profiles",
		Filters:   map[string]any{"status": "verified"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 verified items, got %d", len(resp.Items))
	}
}

func TestScanPagination(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	const total = 5
	for i := 0; i < total; i++ {
		if _, err := svc.Execute(ctx, gateway.Request{
			Operation: gateway.OpPut,
			Table:     "profiles",
			Key:       map[string]any{"nationalId": fmt.Sprintf("id-%d", i)},
			Item:      map[string]any{"nationalId": fmt.Sprintf("id-%d", i)},
		}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	seen := map[string]bool{}
	cursor := ""
	for page := 0; page < total+1; page++ {
		resp, err := svc.Execute(ctx, gateway.Request{
			Operation: gateway.OpScan,
			Table:     "profiles",
			Limit:     2,
			Cursor:    cursor,
		})
		if err != nil {
			t.Fatalf("scan page %d: %v", page, err)
		}
		for _, item := range resp.Items {
			id := item["nationalId"].(string)
			if seen[id] {
				t.Fatalf("item %s returned twice", id)
			}
			seen[id] = true
		}
		if resp.Cursor == "" {
			break
		}
		// The cursor must be echoed back unmodified to continue.
		cursor = resp.Cursor
	}
	if len(seen) != total {
		t.Fatalf("expected %d distinct items across pages, got %d", total, len(seen))
	}
}

func TestQueryByKeyCondition(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Execute(ctx, gateway.Request{
			Operation: gateway.OpPut,
			Table:     "bookings",
			Key:       map[string]any{"bookingId": fmt.Sprintf("b-%d", i)},
			Item:      map[string]any{"bookingId": fmt.Sprintf("b-%d", i), "userId": "u-1"},
		}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	resp, err := svc.Execute(ctx, gateway.Request{
		Operation: gateway.OpQuery,
		Table:     "bookings",
		Key:       map[string]any{"userId": "u-1"},
		Index:     "userId-index",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(resp.Items))
	}
}

func TestReturnedItemsAreDetached(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	key := map[string]any{"nationalId": "902531234V"}

	item := map[string]any{"nationalId": "902531234V", "fullName": "Nimal Perera"}
	if _, err := svc.Execute(ctx, gateway.Request{
		Operation: gateway.OpPut,
		Table:     "profiles",
		Key:       key,
		Item:      item,
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Mutating the caller's map after the put must not reach the store.
	item["fullName"] = "mutated after put"

	resp, err := svc.Execute(ctx, gateway.Request{Operation: gateway.OpGet, Table: "profiles", Key: key})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.Items[0]["fullName"] != "Nimal Perera" {
		t.Fatalf("store shares state with the writer: %v", resp.Items[0])
	}

	// Mutating a returned item must not reach the store either.
	resp.Items[0]["fullName"] = "mutated after get"
	again, err := svc.Execute(ctx, gateway.Request{Operation: gateway.OpGet, Table: "profiles", Key: key})
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again.Items[0]["fullName"] != "Nimal Perera" {
		t.Fatalf("store shares state with the reader: %v", again.Items[0])
	}
}

func TestInvalidRequests(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	cases := []gateway.Request{
		{Operation: gateway.OpPut},                                            // no table
		{Operation: gateway.OpPut, Table: "t"},                                // no item
		{Operation: gateway.OpGet, Table: "t"},                                // no key
		{Operation: gateway.OpUpdate, Table: "t", Key: map[string]any{"a": 1}}, // no updates
		{Operation: "merge", Table: "t"},                                      // unknown op
	}
	for i, req := range cases {
		if _, err := svc.Execute(ctx, req); !errors.Is(err, gateway.ErrInvalidRequest) {
			t.Fatalf("case %d: expected ErrInvalidRequest, got %v", i, err)
		}
	}
}
