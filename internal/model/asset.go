// Package model provides the data structures shared by the local store,
// the reference sync engine, and the audit session layer.
package model

import (
	"fmt"
	"time"
)

// FoundStatus tracks how an auditing row was reconciled during a session.
//
// Transitions are monotonic within a session: once a row is Found or Extra
// it is never downgraded back to unset.
type FoundStatus string

const (
	// FoundStatusUnset means the row was staged (manifest or import) but
	// has not been confirmed by a scan yet.
	FoundStatusUnset FoundStatus = ""

	// FoundStatusFound means the asset was expected for the audited
	// department and a scan confirmed it.
	FoundStatusFound FoundStatus = "Found"

	// FoundStatusExtra means the asset was scanned but not expected:
	// either the server recognized the tag for another department, or
	// nobody recognized it and a placeholder row was created.
	FoundStatusExtra FoundStatus = "Extra"
)

// Business unit codes accepted by the asset tables.
const DefaultBusUnit = "BKCMP"

var busUnits = map[string]bool{
	"BKCMP": true,
	"BKASI": true,
	"BKSTU": true,
	"BKFDN": true,
	"BKSPA": true,
}

// ValidBusUnit reports whether code is one of the fixed business-unit codes.
func ValidBusUnit(code string) bool {
	return busUnits[code]
}

// Asset is a mirrored reference row. Rows are created and updated only by
// reference-sync upserts keyed on Tag; they are never deleted except on a
// full table reset.
type Asset struct {
	Tag          string  `json:"tag"`
	Name         string  `json:"name"`
	Serial       string  `json:"serial"`
	DeptID       string  `json:"dept_id,omitempty"`
	PO           string  `json:"po,omitempty"`
	Model        string  `json:"model,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	RoomTag      string  `json:"room_tag,omitempty"`
	Type         string  `json:"type,omitempty"`
	BusUnit      string  `json:"bus_unit,omitempty"`
	Status       string  `json:"status,omitempty"`
	AssignedTo   string  `json:"assigned_to,omitempty"`
	PurchaseDate string  `json:"purchase_date,omitempty"`
	Price        float64 `json:"price,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// Validate checks the fields the schema enforces.
func (a *Asset) Validate() error {
	if a.Tag == "" {
		return fmt.Errorf("tag is required")
	}
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if a.BusUnit != "" && !ValidBusUnit(a.BusUnit) {
		return fmt.Errorf("unknown bus_unit %q", a.BusUnit)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (a *Asset) SetDefaults() {
	if a.BusUnit == "" {
		a.BusUnit = DefaultBusUnit
	}
	if a.Serial == "" {
		a.Serial = "N/A"
	}
}

// AuditingRow is one row of the working table: an asset participating in
// the current audit, plus the reconciliation fields stamped by scans.
// Tag is unique; a second scan of the same tag updates the row in place.
type AuditingRow struct {
	Asset

	GeoX      *float64 `json:"geo_x,omitempty"`
	GeoY      *float64 `json:"geo_y,omitempty"`
	Elevation *float64 `json:"elevation,omitempty"`

	FoundStatus     FoundStatus `json:"found_status,omitempty"`
	FoundRoomTag    string      `json:"found_room_tag,omitempty"`
	FoundBuilding   string      `json:"found_building,omitempty"`
	FoundRoomNumber string      `json:"found_room_number,omitempty"`
	FoundTimestamp  *time.Time  `json:"found_timestamp,omitempty"`

	AuditID  string `json:"audit_id,omitempty"`
	Location string `json:"location,omitempty"`
}

// Building is a mirrored reference row keyed on BldgID.
type Building struct {
	BldgID int64  `json:"bldg_id"`
	Name   string `json:"name"`
}

// Room is a mirrored reference row keyed on RoomTag. BldgID is a soft
// reference: the schema does not enforce it so rooms can sync before
// buildings without failing.
type Room struct {
	RoomTag string `json:"room_tag"`
	Name    string `json:"name"`
	BldgID  int64  `json:"bldg_id"`
}

// Department is a mirrored reference row keyed on DeptID.
type Department struct {
	DeptID  string `json:"dept_id"`
	Name    string `json:"name"`
	Manager string `json:"manager,omitempty"`
}

// Custodian links a custodian to a department. Rows are unique per
// (custodian, dept_id) pair and cascade-deleted with the department.
type Custodian struct {
	Custodian string `json:"custodian"`
	DeptID    string `json:"dept_id"`
}
