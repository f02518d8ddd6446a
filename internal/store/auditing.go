package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dataworks/fieldaudit/internal/model"
)

// UpsertAuditingRow inserts or updates a working-table row keyed on tag.
//
// The found_status column is monotonic: an incoming unset status never
// overwrites a Found/Extra already recorded, so re-staging a manifest over
// a half-audited table does not lose reconciliation work.
func (db *DB) UpsertAuditingRow(ctx context.Context, r *model.AuditingRow) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid auditing row: %w", err)
	}
	r.SetDefaults()

	query := `
	INSERT INTO auditing (
		tag, name, serial, dept_id, po, model, manufacturer,
		room_tag, type, bus_unit, status, assigned_to, purchase_date,
		price, notes, geo_x, geo_y, elevation,
		found_status, found_room_tag, found_building, found_room_number,
		found_timestamp, audit_id, location
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(tag) DO UPDATE SET
		name = excluded.name,
		serial = excluded.serial,
		dept_id = excluded.dept_id,
		po = excluded.po,
		model = excluded.model,
		manufacturer = excluded.manufacturer,
		room_tag = excluded.room_tag,
		type = excluded.type,
		bus_unit = excluded.bus_unit,
		status = excluded.status,
		assigned_to = excluded.assigned_to,
		purchase_date = excluded.purchase_date,
		price = excluded.price,
		notes = excluded.notes,
		geo_x = COALESCE(excluded.geo_x, geo_x),
		geo_y = COALESCE(excluded.geo_y, geo_y),
		elevation = COALESCE(excluded.elevation, elevation),
		found_status = CASE WHEN excluded.found_status = ''
			THEN found_status ELSE excluded.found_status END,
		found_room_tag = COALESCE(NULLIF(excluded.found_room_tag, ''), found_room_tag),
		found_building = COALESCE(NULLIF(excluded.found_building, ''), found_building),
		found_room_number = COALESCE(NULLIF(excluded.found_room_number, ''), found_room_number),
		found_timestamp = COALESCE(excluded.found_timestamp, found_timestamp),
		audit_id = COALESCE(NULLIF(excluded.audit_id, ''), audit_id),
		location = COALESCE(NULLIF(excluded.location, ''), location)
	`

	_, err := db.conn.ExecContext(ctx, query,
		r.Tag, r.Name, r.Serial, r.DeptID, r.PO, r.Model, r.Manufacturer,
		r.RoomTag, r.Type, r.BusUnit, r.Status, r.AssignedTo, r.PurchaseDate,
		r.Price, r.Notes, r.GeoX, r.GeoY, r.Elevation,
		string(r.FoundStatus), r.FoundRoomTag, r.FoundBuilding, r.FoundRoomNumber,
		timeToNullString(r.FoundTimestamp), r.AuditID, r.Location,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert auditing row %s: %w", r.Tag, err)
	}
	return nil
}

// MarkAuditingFound stamps an existing auditing row as Found with the
// supplied geolocation, room location, and timestamp. A row already
// marked Extra keeps its Extra status; only unset rows transition to
// Found. An empty location leaves the stored one alone.
//
// Returns false when no row with the tag exists.
func (db *DB) MarkAuditingFound(ctx context.Context, tag string, geo *model.Geo, foundRoomTag, location string, ts time.Time) (bool, error) {
	var geoX, geoY, elevation any
	if geo != nil {
		geoX = geo.Latitude
		geoY = geo.Longitude
		if geo.Altitude != nil {
			elevation = *geo.Altitude
		}
	}

	query := `
	UPDATE auditing SET
		found_status = CASE WHEN found_status = ''
			THEN ? ELSE found_status END,
		geo_x = COALESCE(?, geo_x),
		geo_y = COALESCE(?, geo_y),
		elevation = COALESCE(?, elevation),
		found_room_tag = ?,
		found_timestamp = ?,
		location = COALESCE(NULLIF(?, ''), location)
	WHERE tag = ?
	`

	res, err := db.conn.ExecContext(ctx, query,
		string(model.FoundStatusFound),
		geoX, geoY, elevation,
		foundRoomTag,
		ts.UTC().Format(time.RFC3339),
		location,
		tag,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s found: %w", tag, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

const auditingColumns = `tag, name, serial, dept_id, po, model, manufacturer,
	room_tag, type, bus_unit, status, assigned_to, purchase_date, price, notes,
	geo_x, geo_y, elevation, found_status, found_room_tag, found_building,
	found_room_number, found_timestamp, audit_id, location`

// AuditingByTag retrieves a working-table row, (nil, nil) when absent.
func (db *DB) AuditingByTag(ctx context.Context, tag string) (*model.AuditingRow, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+auditingColumns+` FROM auditing WHERE tag = ?`, tag)

	r, err := scanAuditingRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query auditing row %s: %w", tag, err)
	}
	return r, nil
}

// AllAuditing returns the entire working table in insertion order. This is
// the batch submitted by finish-audit.
func (db *DB) AllAuditing(ctx context.Context) ([]*model.AuditingRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+auditingColumns+` FROM auditing ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query auditing table: %w", err)
	}
	defer rows.Close()

	var out []*model.AuditingRow
	for rows.Next() {
		r, err := scanAuditingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auditing row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auditing rows: %w", err)
	}
	return out, nil
}

// ClearAuditing empties the working table and resets its id sequence.
// Used when an audit is stopped, finished, or restarted.
func (db *DB) ClearAuditing(ctx context.Context) error {
	return db.ClearTable(ctx, "auditing")
}

func scanAuditingRow(row rowScanner) (*model.AuditingRow, error) {
	var r model.AuditingRow
	var deptID, po, mdl, manufacturer, roomTag, typ, busUnit sql.NullString
	var status, assignedTo, purchaseDate, notes sql.NullString
	var price, geoX, geoY, elevation sql.NullFloat64
	var foundStatus string
	var foundRoomTag, foundBuilding, foundRoomNumber, foundTS, auditID, location sql.NullString

	err := row.Scan(
		&r.Tag, &r.Name, &r.Serial, &deptID, &po, &mdl, &manufacturer,
		&roomTag, &typ, &busUnit, &status, &assignedTo, &purchaseDate,
		&price, &notes, &geoX, &geoY, &elevation,
		&foundStatus, &foundRoomTag, &foundBuilding, &foundRoomNumber,
		&foundTS, &auditID, &location,
	)
	if err != nil {
		return nil, err
	}

	r.DeptID = deptID.String
	r.PO = po.String
	r.Model = mdl.String
	r.Manufacturer = manufacturer.String
	r.RoomTag = roomTag.String
	r.Type = typ.String
	r.BusUnit = busUnit.String
	r.Status = status.String
	r.AssignedTo = assignedTo.String
	r.PurchaseDate = purchaseDate.String
	r.Price = price.Float64
	r.Notes = notes.String
	r.GeoX = nullFloatPtr(geoX)
	r.GeoY = nullFloatPtr(geoY)
	r.Elevation = nullFloatPtr(elevation)
	r.FoundStatus = model.FoundStatus(foundStatus)
	r.FoundRoomTag = foundRoomTag.String
	r.FoundBuilding = foundBuilding.String
	r.FoundRoomNumber = foundRoomNumber.String
	r.FoundTimestamp = nullStringToTime(foundTS)
	r.AuditID = auditID.String
	r.Location = location.String
	return &r, nil
}

func nullFloatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
