package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dataworks/fieldaudit/internal/model"
)

// UpsertBuilding inserts or updates a building keyed on bldg_id.
func (db *DB) UpsertBuilding(ctx context.Context, b *model.Building) error {
	if b.Name == "" {
		return fmt.Errorf("invalid building: name is required")
	}

	query := `
	INSERT INTO building (name, bldg_id)
	VALUES (?, ?)
	ON CONFLICT(bldg_id) DO UPDATE SET
		name = excluded.name
	`

	if _, err := db.conn.ExecContext(ctx, query, b.Name, b.BldgID); err != nil {
		return fmt.Errorf("failed to upsert building %d: %w", b.BldgID, err)
	}
	return nil
}

// UpsertRoom inserts or updates a room keyed on room_tag.
func (db *DB) UpsertRoom(ctx context.Context, r *model.Room) error {
	if r.RoomTag == "" {
		return fmt.Errorf("invalid room: room_tag is required")
	}

	query := `
	INSERT INTO room (room_tag, name, bldg_id)
	VALUES (?, ?, ?)
	ON CONFLICT(room_tag) DO UPDATE SET
		name = excluded.name,
		bldg_id = excluded.bldg_id
	`

	if _, err := db.conn.ExecContext(ctx, query, r.RoomTag, r.Name, r.BldgID); err != nil {
		return fmt.Errorf("failed to upsert room %s: %w", r.RoomTag, err)
	}
	return nil
}

// UpsertDepartment inserts or updates a department keyed on dept_id.
func (db *DB) UpsertDepartment(ctx context.Context, d *model.Department) error {
	if d.DeptID == "" {
		return fmt.Errorf("invalid department: dept_id is required")
	}

	query := `
	INSERT INTO department (name, dept_id, manager)
	VALUES (?, ?, ?)
	ON CONFLICT(dept_id) DO UPDATE SET
		name = excluded.name,
		manager = excluded.manager
	`

	if _, err := db.conn.ExecContext(ctx, query, d.Name, d.DeptID, d.Manager); err != nil {
		return fmt.Errorf("failed to upsert department %s: %w", d.DeptID, err)
	}
	return nil
}

// UpsertCustodian records a (custodian, dept_id) pair. Duplicate pairs are
// ignored rather than surfaced as conflicts.
func (db *DB) UpsertCustodian(ctx context.Context, c *model.Custodian) error {
	query := `
	INSERT OR IGNORE INTO department_cust (custodian, dept_id)
	VALUES (?, ?)
	`

	if _, err := db.conn.ExecContext(ctx, query, c.Custodian, c.DeptID); err != nil {
		return fmt.Errorf("failed to upsert custodian %s/%s: %w", c.Custodian, c.DeptID, err)
	}
	return nil
}

// ListBuildings returns cached buildings, highest bldg_id first.
func (db *DB) ListBuildings(ctx context.Context, limit, offset int) ([]*model.Building, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT bldg_id, name FROM building ORDER BY bldg_id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	defer rows.Close()

	var buildings []*model.Building
	for rows.Next() {
		var b model.Building
		if err := rows.Scan(&b.BldgID, &b.Name); err != nil {
			return nil, fmt.Errorf("failed to scan building: %w", err)
		}
		buildings = append(buildings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating buildings: %w", err)
	}
	return buildings, nil
}

// ListRooms returns cached rooms for a building, or all rooms when bldgID
// is negative.
func (db *DB) ListRooms(ctx context.Context, bldgID int64, limit, offset int) ([]*model.Room, error) {
	var rows *sql.Rows
	var err error
	if bldgID < 0 {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT room_tag, name, bldg_id FROM room ORDER BY room_tag DESC LIMIT ? OFFSET ?`,
			limit, offset)
	} else {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT room_tag, name, bldg_id FROM room WHERE bldg_id = ? ORDER BY room_tag DESC LIMIT ? OFFSET ?`,
			bldgID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rs []*model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.RoomTag, &r.Name, &r.BldgID); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rs = append(rs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}
	return rs, nil
}

// ListDepartments returns cached departments, highest dept_id first.
func (db *DB) ListDepartments(ctx context.Context, limit, offset int) ([]*model.Department, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT dept_id, name, manager FROM department ORDER BY dept_id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var depts []*model.Department
	for rows.Next() {
		var d model.Department
		var manager sql.NullString
		if err := rows.Scan(&d.DeptID, &d.Name, &manager); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		d.Manager = manager.String
		depts = append(depts, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating departments: %w", err)
	}
	return depts, nil
}

// DepartmentByID retrieves a department, (nil, nil) when not cached.
func (db *DB) DepartmentByID(ctx context.Context, deptID string) (*model.Department, error) {
	var d model.Department
	var manager sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT dept_id, name, manager FROM department WHERE dept_id = ?`, deptID).
		Scan(&d.DeptID, &d.Name, &manager)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query department %s: %w", deptID, err)
	}
	d.Manager = manager.String
	return &d, nil
}

// RoomByTag retrieves a room, (nil, nil) when not cached.
func (db *DB) RoomByTag(ctx context.Context, roomTag string) (*model.Room, error) {
	var r model.Room
	err := db.conn.QueryRowContext(ctx,
		`SELECT room_tag, name, bldg_id FROM room WHERE room_tag = ?`, roomTag).
		Scan(&r.RoomTag, &r.Name, &r.BldgID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query room %s: %w", roomTag, err)
	}
	return &r, nil
}

// BuildingByID retrieves a building, (nil, nil) when not cached.
func (db *DB) BuildingByID(ctx context.Context, bldgID int64) (*model.Building, error) {
	var b model.Building
	err := db.conn.QueryRowContext(ctx,
		`SELECT bldg_id, name FROM building WHERE bldg_id = ?`, bldgID).
		Scan(&b.BldgID, &b.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query building %d: %w", bldgID, err)
	}
	return &b, nil
}
