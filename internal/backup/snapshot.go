package backup

import (
	"bytes"
	"encoding/json"

	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/orders"
	"github.com/angelmondragon/shelfpos/internal/products"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
)

// FormatVersion is written into every snapshot.
const FormatVersion = "1.0"

// ExportTimeLayout formats Snapshot.ExportTime.
const ExportTimeLayout = "2006-01-02 15:04:05"

// Snapshot is the backup file: the whole store at export time.
type Snapshot struct {
	Version    string                `json:"version"`
	ExportTime string                `json:"exportTime"`
	Categories []categories.Category `json:"categories"`
	Products   []products.Product    `json:"products"`
	Orders     []orders.Order        `json:"orders"`
	OrderItems []orders.OrderItem    `json:"orderItems"`
}

// rawSnapshot is a shape-checked file whose records are still undecoded.
type rawSnapshot struct {
	Version    string
	ExportTime string
	Categories []json.RawMessage
	Products   []json.RawMessage
	Orders     []json.RawMessage
	OrderItems []json.RawMessage
}

// parseSnapshot checks the top-level shape only. Records are decoded one by
// one during import so a single bad record does not reject the file.
func parseSnapshot(data []byte) (*rawSnapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidFormat, err, "backup file is not a JSON object")
	}
	if top == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidFormat, "backup file is not a JSON object")
	}

	var (
		out  rawSnapshot
		errs = map[string]string{}
	)
	readString := func(field string, dst *string) {
		raw, ok := top[field]
		if !ok {
			errs[field] = "is missing"
			return
		}
		if !startsWith(raw, '"') || json.Unmarshal(raw, dst) != nil {
			errs[field] = "must be a string"
		}
	}
	readArray := func(field string, dst *[]json.RawMessage) {
		raw, ok := top[field]
		if !ok {
			errs[field] = "is missing"
			return
		}
		if !startsWith(raw, '[') || json.Unmarshal(raw, dst) != nil {
			errs[field] = "must be an array"
		}
	}
	readString("version", &out.Version)
	readString("exportTime", &out.ExportTime)
	readArray("categories", &out.Categories)
	readArray("products", &out.Products)
	readArray("orders", &out.Orders)
	readArray("orderItems", &out.OrderItems)

	if len(errs) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidFormat, "invalid backup file format").WithDetails(errs)
	}
	return &out, nil
}

func startsWith(raw json.RawMessage, b byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == b
}

// recordID pulls the id out of a record that may not decode into its type.
func recordID(raw json.RawMessage) string {
	var probe struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	if s, ok := probe.ID.(string); ok {
		return s
	}
	return ""
}
