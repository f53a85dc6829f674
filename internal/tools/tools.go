// Package tools is the catalog of dealership actions the chat model can
// invoke during a call: inventory search, test-drive booking, business
// hours, and transfer to a human agent.
//
// The data behind the tools is an in-process mock; a production deployment
// would back [Executor] with the dealership's inventory and booking systems.
// Results are JSON strings fed verbatim back to the model as tool results.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/draumabilar/sunna/pkg/provider/chat"
)

// Tool names the model may request.
const (
	NameSearchInventory  = "search_inventory"
	NameBookTestDrive    = "book_test_drive"
	NameGetBusinessHours = "get_business_hours"
	NameTransferToAgent  = "transfer_to_agent"
)

// Catalog returns the tool definitions offered to the chat model.
func Catalog() []chat.ToolDefinition {
	return []chat.ToolDefinition{
		{
			Name: NameSearchInventory,
			Description: "Leita að bílum á lager. Skilar lista af tiltækum bílum " +
				"sem passa við leitarskilyrði.",
			Properties: map[string]any{
				"make": map[string]any{
					"type":        "string",
					"description": "Tegund bíls (t.d. 'Tesla', 'Toyota', 'Volvo')",
				},
				"model": map[string]any{
					"type":        "string",
					"description": "Gerð bíls (t.d. 'Model 3', 'RAV4')",
				},
				"max_price": map[string]any{
					"type":        "number",
					"description": "Hámarksverð í ISK",
				},
				"fuel_type": map[string]any{
					"type":        "string",
					"enum":        []string{"rafmagn", "bensín", "dísel", "hybrid", "tengiltvinn"},
					"description": "Eldsneytistegund",
				},
				"year_min": map[string]any{
					"type":        "integer",
					"description": "Lágmarksárgerð",
				},
			},
		},
		{
			Name:        NameBookTestDrive,
			Description: "Bóka reynsluakstur. Krefst nafns, símanúmers, bíls og dagsetningar.",
			Properties: map[string]any{
				"customer_name": map[string]any{
					"type":        "string",
					"description": "Nafn viðskiptavinar",
				},
				"phone_number": map[string]any{
					"type":        "string",
					"description": "Símanúmer",
				},
				"vehicle_id": map[string]any{
					"type":        "string",
					"description": "Auðkenni bíls af lager",
				},
				"preferred_date": map[string]any{
					"type":        "string",
					"description": "Dagsetning (YYYY-MM-DD)",
				},
				"preferred_time": map[string]any{
					"type":        "string",
					"description": "Tími (HH:MM)",
				},
			},
			Required: []string{"customer_name", "phone_number", "vehicle_id", "preferred_date"},
		},
		{
			Name:        NameGetBusinessHours,
			Description: "Sækja opnunartíma bílaumboðsins.",
			Properties: map[string]any{
				"day": map[string]any{
					"type": "string",
					"enum": []string{
						"mánudagur", "þriðjudagur", "miðvikudagur", "fimmtudagur",
						"föstudagur", "laugardagur", "sunnudagur",
					},
					"description": "Dagur vikunnar",
				},
			},
		},
		{
			Name: NameTransferToAgent,
			Description: "Tengja viðskiptavin við mannlegan sölumann. Nota ef viðskiptavinur " +
				"biður um það eða ef spurningin er of flókin.",
			Properties: map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Ástæða fyrir tilfærslu",
				},
				"department": map[string]any{
					"type":        "string",
					"enum":        []string{"sala", "þjónusta", "varahlutir", "fjármögnun"},
					"description": "Deild",
				},
			},
			Required: []string{"reason"},
		},
	}
}

// Vehicle is one inventory entry.
type Vehicle struct {
	ID        string `json:"id"`
	Make      string `json:"make"`
	Model     string `json:"model"`
	Year      int    `json:"year"`
	Color     string `json:"color"`
	PriceISK  int    `json:"price_isk"`
	FuelType  string `json:"fuel_type"`
	MileageKM int    `json:"mileage_km"`
}

// dayHours is the opening window of one weekday; a nil entry means closed.
type dayHours struct {
	Open  string
	Close string
}

// Executor runs tool invocations against the dealership data.
// Safe for concurrent use; the mock data is read-only.
type Executor struct {
	inventory []Vehicle
	hours     map[string]*dayHours
	now       func() time.Time
}

// NewExecutor creates an Executor over the built-in mock inventory.
func NewExecutor() *Executor {
	return &Executor{
		inventory: []Vehicle{
			{ID: "DB-001", Make: "Tesla", Model: "Model Y", Year: 2024, Color: "hvítur", PriceISK: 8_900_000, FuelType: "rafmagn", MileageKM: 3200},
			{ID: "DB-002", Make: "BMW", Model: "X3", Year: 2023, Color: "svartur", PriceISK: 9_500_000, FuelType: "dísel", MileageKM: 22000},
			{ID: "DB-003", Make: "Toyota", Model: "RAV4", Year: 2023, Color: "grár", PriceISK: 6_800_000, FuelType: "hybrid", MileageKM: 18000},
			{ID: "DB-004", Make: "Mercedes-Benz", Model: "GLC", Year: 2024, Color: "silfur", PriceISK: 12_500_000, FuelType: "tengiltvinn", MileageKM: 5000},
			{ID: "DB-005", Make: "Kia", Model: "EV6", Year: 2024, Color: "blár", PriceISK: 7_500_000, FuelType: "rafmagn", MileageKM: 1500},
			{ID: "DB-006", Make: "Volvo", Model: "XC40", Year: 2023, Color: "rauður", PriceISK: 8_200_000, FuelType: "rafmagn", MileageKM: 12000},
		},
		hours: map[string]*dayHours{
			"mánudagur":    {Open: "10:00", Close: "18:00"},
			"þriðjudagur":  {Open: "10:00", Close: "18:00"},
			"miðvikudagur": {Open: "10:00", Close: "18:00"},
			"fimmtudagur":  {Open: "10:00", Close: "18:00"},
			"föstudagur":   {Open: "10:00", Close: "18:00"},
			"laugardagur":  {Open: "12:00", Close: "15:00"},
			"sunnudagur":   nil,
		},
		now: time.Now,
	}
}

// Execute runs one tool invocation and returns its result as a JSON string.
// Unknown tools return a JSON error object rather than failing the call.
func (e *Executor) Execute(ctx context.Context, name string, input json.RawMessage) string {
	if err := ctx.Err(); err != nil {
		return jsonObj(map[string]any{"error": "aðgerð hætt við"})
	}

	var params map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			params = map[string]any{}
		}
	}
	slog.Info("tool execute", "tool", name, "input", string(input))

	switch name {
	case NameSearchInventory:
		return e.searchInventory(params)
	case NameBookTestDrive:
		return e.bookTestDrive(params)
	case NameGetBusinessHours:
		return e.businessHours(params)
	case NameTransferToAgent:
		return e.transferToAgent(params)
	default:
		return jsonObj(map[string]any{"error": fmt.Sprintf("Óþekkt verkfæri: %s", name)})
	}
}

func (e *Executor) searchInventory(params map[string]any) string {
	results := make([]Vehicle, 0, len(e.inventory))
	for _, v := range e.inventory {
		if mk, ok := stringParam(params, "make"); ok && !strings.EqualFold(v.Make, mk) {
			continue
		}
		if model, ok := stringParam(params, "model"); ok && !strings.EqualFold(v.Model, model) {
			continue
		}
		if maxPrice, ok := numberParam(params, "max_price"); ok && float64(v.PriceISK) > maxPrice {
			continue
		}
		if fuel, ok := stringParam(params, "fuel_type"); ok && v.FuelType != fuel {
			continue
		}
		if yearMin, ok := numberParam(params, "year_min"); ok && float64(v.Year) < yearMin {
			continue
		}
		results = append(results, v)
	}
	return jsonObj(map[string]any{"count": len(results), "vehicles": results})
}

func (e *Executor) bookTestDrive(params map[string]any) string {
	vehicleID, _ := stringParam(params, "vehicle_id")
	var vehicle *Vehicle
	for i := range e.inventory {
		if e.inventory[i].ID == vehicleID {
			vehicle = &e.inventory[i]
			break
		}
	}
	if vehicle == nil {
		return jsonObj(map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Bíll %s fannst ekki á lager.", vehicleID),
		})
	}

	name, _ := stringParam(params, "customer_name")
	phone, _ := stringParam(params, "phone_number")
	date, _ := stringParam(params, "preferred_date")
	timeOfDay, ok := stringParam(params, "preferred_time")
	if !ok {
		timeOfDay = "10:00"
	}

	return jsonObj(map[string]any{
		"success":       true,
		"booking_id":    "BK-" + e.now().Format("200601021504"),
		"customer_name": name,
		"phone_number":  phone,
		"vehicle":       fmt.Sprintf("%d %s %s (%s)", vehicle.Year, vehicle.Make, vehicle.Model, vehicle.Color),
		"date":          date,
		"time":          timeOfDay,
	})
}

func (e *Executor) businessHours(params map[string]any) string {
	if day, ok := stringParam(params, "day"); ok {
		hours, known := e.hours[day]
		if !known || hours == nil {
			return jsonObj(map[string]any{"day": day, "status": "lokað"})
		}
		return jsonObj(map[string]any{"day": day, "open": hours.Open, "close": hours.Close})
	}

	all := make(map[string]any, len(e.hours))
	for day, hours := range e.hours {
		if hours == nil {
			all[day] = "lokað"
		} else {
			all[day] = hours.Open + " - " + hours.Close
		}
	}
	return jsonObj(all)
}

func (e *Executor) transferToAgent(params map[string]any) string {
	reason, _ := stringParam(params, "reason")
	department, ok := stringParam(params, "department")
	if !ok {
		department = "sala"
	}
	return jsonObj(map[string]any{
		"success":        true,
		"message":        "Tilfærsla í vinnslu",
		"department":     department,
		"reason":         reason,
		"estimated_wait": "um eina mínútu",
	})
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok && v != ""
}

func numberParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key].(float64)
	return v, ok
}

func jsonObj(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"error":"serialization failure"}`
	}
	return string(data)
}
