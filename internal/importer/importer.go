// Package importer stages audit manifests from files. Field teams that
// cannot reach the server get their expected-asset list as a CSV or XLSX
// export; importing one stages the working table exactly as an online
// audit start would.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dataworks/fieldaudit/internal/model"
)

// headerAliases maps the column names seen in exports to asset fields.
// Matching is case-insensitive after trimming.
var headerAliases = map[string]string{
	"tag":           "tag",
	"asset tag":     "tag",
	"asset_tag":     "tag",
	"name":          "name",
	"description":   "name",
	"serial":        "serial",
	"serial number": "serial",
	"serial_number": "serial",
	"dept":          "dept_id",
	"dept_id":       "dept_id",
	"department":    "dept_id",
	"po":            "po",
	"po number":     "po",
	"model":         "model",
	"manufacturer":  "manufacturer",
	"room":          "room_tag",
	"room_tag":      "room_tag",
	"type":          "type",
	"bus_unit":      "bus_unit",
	"business unit": "bus_unit",
	"status":        "status",
	"assigned_to":   "assigned_to",
	"assigned to":   "assigned_to",
	"custodian":     "assigned_to",
	"purchase_date": "purchase_date",
	"purchase date": "purchase_date",
	"price":         "price",
	"cost":          "price",
	"notes":         "notes",
}

// ReadFile parses a manifest file into assets. The format is chosen by
// extension: .csv or .xlsx.
func ReadFile(path string) ([]model.Asset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", filepath.Ext(path))
	}
}

// ReadCSV parses a CSV manifest. The first row is the header; unknown
// columns are ignored, and rows without a tag are skipped.
func ReadCSV(r io.Reader) ([]model.Asset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := mapHeader(header)
	if _, ok := cols["tag"]; !ok {
		return nil, fmt.Errorf("manifest has no tag column")
	}

	var assets []model.Asset
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		if a, ok := rowToAsset(cols, record); ok {
			assets = append(assets, a)
		}
	}
	return assets, nil
}

// ReadXLSX parses the first sheet of an XLSX manifest with the same
// header mapping as CSV.
func ReadXLSX(path string) ([]model.Asset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	cols := mapHeader(rows[0])
	if _, ok := cols["tag"]; !ok {
		return nil, fmt.Errorf("manifest has no tag column")
	}

	var assets []model.Asset
	for _, record := range rows[1:] {
		if a, ok := rowToAsset(cols, record); ok {
			assets = append(assets, a)
		}
	}
	return assets, nil
}

// mapHeader returns field name -> column index for recognized columns.
func mapHeader(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if field, ok := headerAliases[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	return cols
}

func cell(cols map[string]int, record []string, field string) string {
	i, ok := cols[field]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func rowToAsset(cols map[string]int, record []string) (model.Asset, bool) {
	a := model.Asset{
		Tag:          cell(cols, record, "tag"),
		Name:         cell(cols, record, "name"),
		Serial:       cell(cols, record, "serial"),
		DeptID:       cell(cols, record, "dept_id"),
		PO:           cell(cols, record, "po"),
		Model:        cell(cols, record, "model"),
		Manufacturer: cell(cols, record, "manufacturer"),
		RoomTag:      cell(cols, record, "room_tag"),
		Type:         cell(cols, record, "type"),
		BusUnit:      cell(cols, record, "bus_unit"),
		Status:       cell(cols, record, "status"),
		AssignedTo:   cell(cols, record, "assigned_to"),
		PurchaseDate: cell(cols, record, "purchase_date"),
		Notes:        cell(cols, record, "notes"),
	}
	if a.Tag == "" {
		return model.Asset{}, false
	}
	if raw := cell(cols, record, "price"); raw != "" {
		raw = strings.TrimPrefix(raw, "$")
		raw = strings.ReplaceAll(raw, ",", "")
		if p, err := strconv.ParseFloat(raw, 64); err == nil {
			a.Price = p
		}
	}
	a.SetDefaults()
	return a, true
}
