package backup

import "encoding/json"

// Failure is one record the import skipped.
type Failure struct {
	Index  int             `json:"index"`
	ID     string          `json:"id,omitempty"`
	Reason string          `json:"reason"`
	Record json.RawMessage `json:"record,omitempty"`
}

// EntityReport is the outcome for one entity type.
type EntityReport struct {
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

func newEntityReport() EntityReport {
	return EntityReport{Succeeded: []string{}, Failed: []Failure{}}
}

func (r *EntityReport) ok(id string) {
	r.Succeeded = append(r.Succeeded, id)
}

func (r *EntityReport) fail(index int, id string, raw json.RawMessage, err error) {
	r.Failed = append(r.Failed, Failure{Index: index, ID: id, Reason: err.Error(), Record: raw})
}

// ImportReport lists what each entity type imported and skipped.
type ImportReport struct {
	Version    string       `json:"version"`
	ExportTime string       `json:"exportTime"`
	Categories EntityReport `json:"categories"`
	Products   EntityReport `json:"products"`
	Orders     EntityReport `json:"orders"`
	OrderItems EntityReport `json:"orderItems"`
}

func newImportReport(version, exportTime string) *ImportReport {
	return &ImportReport{
		Version:    version,
		ExportTime: exportTime,
		Categories: newEntityReport(),
		Products:   newEntityReport(),
		Orders:     newEntityReport(),
		OrderItems: newEntityReport(),
	}
}

func (r *ImportReport) Imported() int {
	return len(r.Categories.Succeeded) + len(r.Products.Succeeded) +
		len(r.Orders.Succeeded) + len(r.OrderItems.Succeeded)
}

func (r *ImportReport) FailedCount() int {
	return len(r.Categories.Failed) + len(r.Products.Failed) +
		len(r.Orders.Failed) + len(r.OrderItems.Failed)
}
