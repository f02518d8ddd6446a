package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dataworks/fieldaudit/internal/model"
)

// UpsertAsset inserts or updates a mirrored asset row keyed on tag.
//
// Only the reference columns are written; an existing row keeps its id and
// any column the caller did not supply a value for is left untouched by
// way of the explicit update list.
func (db *DB) UpsertAsset(ctx context.Context, a *model.Asset) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid asset: %w", err)
	}
	a.SetDefaults()

	query := `
	INSERT INTO asset_table (
		tag, name, serial, dept_id, po, model, manufacturer,
		room_tag, type, bus_unit, status, assigned_to,
		purchase_date, price, notes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		notes = excluded.notes
	`

	_, err := db.conn.ExecContext(ctx, query,
		a.Tag, a.Name, a.Serial, a.DeptID, a.PO, a.Model, a.Manufacturer,
		a.RoomTag, a.Type, a.BusUnit, a.Status, a.AssignedTo,
		a.PurchaseDate, a.Price, a.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert asset %s: %w", a.Tag, err)
	}
	return nil
}

const assetColumns = `tag, name, serial, dept_id, po, model, manufacturer,
	room_tag, type, bus_unit, status, assigned_to, purchase_date, price, notes`

// AssetByTag retrieves a single mirrored asset by tag.
// Returns (nil, nil) when the tag is not cached locally.
func (db *DB) AssetByTag(ctx context.Context, tag string) (*model.Asset, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM asset_table WHERE tag = ?`, tag)

	a, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset %s: %w", tag, err)
	}
	return a, nil
}

// SearchAssets finds assets whose tag or name matches the query
// (case-insensitive substring), newest tags first.
func (db *DB) SearchAssets(ctx context.Context, query string, limit, offset int) ([]*model.Asset, error) {
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM asset_table
		 WHERE tag LIKE ? COLLATE NOCASE
		    OR name LIKE ? COLLATE NOCASE
		 ORDER BY tag DESC
		 LIMIT ? OFFSET ?`,
		like, like, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

// AssetsByDepartment lists the cached assets belonging to one department.
func (db *DB) AssetsByDepartment(ctx context.Context, deptID string, limit, offset int) ([]*model.Asset, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM asset_table
		 WHERE dept_id = ? COLLATE NOCASE
		 ORDER BY tag DESC
		 LIMIT ? OFFSET ?`,
		deptID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query department assets: %w", err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*model.Asset, error) {
	var a model.Asset
	var deptID, po, mdl, manufacturer, roomTag, typ, busUnit sql.NullString
	var status, assignedTo, purchaseDate, notes sql.NullString
	var price sql.NullFloat64

	err := row.Scan(
		&a.Tag, &a.Name, &a.Serial, &deptID, &po, &mdl, &manufacturer,
		&roomTag, &typ, &busUnit, &status, &assignedTo, &purchaseDate,
		&price, &notes,
	)
	if err != nil {
		return nil, err
	}

	a.DeptID = deptID.String
	a.PO = po.String
	a.Model = mdl.String
	a.Manufacturer = manufacturer.String
	a.RoomTag = roomTag.String
	a.Type = typ.String
	a.BusUnit = busUnit.String
	a.Status = status.String
	a.AssignedTo = assignedTo.String
	a.PurchaseDate = purchaseDate.String
	a.Price = price.Float64
	a.Notes = notes.String
	return &a, nil
}

func scanAssets(rows *sql.Rows) ([]*model.Asset, error) {
	var assets []*model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}
