package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("tool result is not JSON: %v\n%s", err, raw)
	}
	return out
}

func TestCatalogNamesAndRequirements(t *testing.T) {
	t.Parallel()

	defs := Catalog()
	if len(defs) != 4 {
		t.Fatalf("catalog has %d tools, want 4", len(defs))
	}

	byName := map[string][]string{}
	for _, d := range defs {
		byName[d.Name] = d.Required
	}
	if _, ok := byName[NameSearchInventory]; !ok {
		t.Error("missing search_inventory")
	}
	if req := byName[NameBookTestDrive]; len(req) != 4 {
		t.Errorf("book_test_drive required = %v", req)
	}
	if req := byName[NameTransferToAgent]; len(req) != 1 || req[0] != "reason" {
		t.Errorf("transfer_to_agent required = %v", req)
	}
}

func TestSearchInventoryNoFilters(t *testing.T) {
	t.Parallel()

	e := NewExecutor()
	res := decode(t, e.Execute(context.Background(), NameSearchInventory, nil))
	if res["count"].(float64) != 6 {
		t.Errorf("count = %v, want 6", res["count"])
	}
}

func TestSearchInventoryFilters(t *testing.T) {
	t.Parallel()

	e := NewExecutor()
	cases := []struct {
		name  string
		input string
		want  int
	}{
		{"electric only", `{"fuel_type":"rafmagn"}`, 3},
		{"make case-insensitive", `{"make":"tesla"}`, 1},
		{"max price", `{"max_price":8000000}`, 2},
		{"year floor", `{"year_min":2024}`, 3},
		{"combined", `{"fuel_type":"rafmagn","max_price":8000000}`, 1},
		{"no match", `{"make":"Lada"}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := decode(t, e.Execute(context.Background(), NameSearchInventory, json.RawMessage(tc.input)))
			if got := int(res["count"].(float64)); got != tc.want {
				t.Errorf("count = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBookTestDrive(t *testing.T) {
	t.Parallel()

	e := NewExecutor()
	e.now = func() time.Time { return time.Date(2026, 8, 24, 14, 30, 0, 0, time.UTC) }

	input := `{"customer_name":"Jón Jónsson","phone_number":"5551234","vehicle_id":"DB-005","preferred_date":"2026-08-28"}`
	res := decode(t, e.Execute(context.Background(), NameBookTestDrive, json.RawMessage(input)))

	if res["success"] != true {
		t.Fatalf("booking failed: %v", res)
	}
	if res["booking_id"] != "BK-202608241430" {
		t.Errorf("booking_id = %v", res["booking_id"])
	}
	if !strings.Contains(res["vehicle"].(string), "Kia EV6") {
		t.Errorf("vehicle = %v", res["vehicle"])
	}
	if res["time"] != "10:00" {
		t.Errorf("default time = %v, want 10:00", res["time"])
	}
}

func TestBookTestDriveUnknownVehicle(t *testing.T) {
	t.Parallel()

	e := NewExecutor()
	res := decode(t, e.Execute(context.Background(), NameBookTestDrive,
		json.RawMessage(`{"customer_name":"x","phone_number":"y","vehicle_id":"DB-999","preferred_date":"2026-09-01"}`)))
	if res["success"] != false {
		t.Errorf("expected failure for unknown vehicle: %v", res)
	}
	if !strings.Contains(res["error"].(string), "DB-999") {
		t.Errorf("error = %v", res["error"])
	}
}

func TestBusinessHours(t *testing.T) {
	t.Parallel()

	e := NewExecutor()

	res := decode(t, e.Execute(context.Background(), NameGetBusinessHours, json.RawMessage(`{"day":"laugardagur"}`)))
	if res["open"] != "12:00" || res["close"] != "15:00" {
		t.Errorf("saturday hours = %v", res)
	}

	res = decode(t, e.Execute(context.Background(), NameGetBusinessHours, json.RawMessage(`{"day":"sunnudagur"}`)))
	if res["status"] != "lokað" {
		t.Errorf("sunday = %v, want lokað", res)
	}

	res = decode(t, e.Execute(context.Background(), NameGetBusinessHours, nil))
	if len(res) != 7 {
		t.Errorf("all-days result has %d entries, want 7", len(res))
	}
}

func TestTransferToAgentDefaults(t *testing.T) {
	t.Parallel()

	e := NewExecutor()
	res := decode(t, e.Execute(context.Background(), NameTransferToAgent, json.RawMessage(`{"reason":"flókin spurning"}`)))
	if res["department"] != "sala" {
		t.Errorf("default department = %v, want sala", res["department"])
	}
	if res["success"] != true {
		t.Errorf("success = %v", res["success"])
	}
}

func TestUnknownToolReturnsJSONError(t *testing.T) {
	t.Parallel()

	e := NewExecutor()
	res := decode(t, e.Execute(context.Background(), "warp_drive", nil))
	if !strings.Contains(res["error"].(string), "warp_drive") {
		t.Errorf("error = %v", res["error"])
	}
}

func TestMalformedInputTreatedAsEmpty(t *testing.T) {
	t.Parallel()

	e := NewExecutor()
	res := decode(t, e.Execute(context.Background(), NameSearchInventory, json.RawMessage(`{not json`)))
	if res["count"].(float64) != 6 {
		t.Errorf("malformed input should search unfiltered: %v", res)
	}
}
