package store

import (
	"context"
	"testing"
	"time"

	"github.com/dataworks/fieldaudit/internal/model"
)

// TestUpsertAuditingRow_OneRowPerTag tests upsert semantics on the
// working table.
func TestUpsertAuditingRow_OneRowPerTag(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		row := &model.AuditingRow{Asset: model.Asset{Tag: "A-1", Name: "Printer"}}
		if err := db.UpsertAuditingRow(ctx, row); err != nil {
			t.Fatalf("UpsertAuditingRow() failed: %v", err)
		}
	}

	n, err := db.Count(ctx, "auditing")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

// TestUpsertAuditingRow_FoundStatusMonotonic tests that re-staging a tag
// with unset status does not erase a recorded Found.
func TestUpsertAuditingRow_FoundStatusMonotonic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	row := &model.AuditingRow{
		Asset:       model.Asset{Tag: "A-2", Name: "Scanner"},
		FoundStatus: model.FoundStatusFound,
	}
	if err := db.UpsertAuditingRow(ctx, row); err != nil {
		t.Fatalf("UpsertAuditingRow() failed: %v", err)
	}

	restaged := &model.AuditingRow{Asset: model.Asset{Tag: "A-2", Name: "Scanner"}}
	if err := db.UpsertAuditingRow(ctx, restaged); err != nil {
		t.Fatalf("re-stage failed: %v", err)
	}

	got, err := db.AuditingByTag(ctx, "A-2")
	if err != nil {
		t.Fatalf("AuditingByTag() failed: %v", err)
	}
	if got.FoundStatus != model.FoundStatusFound {
		t.Errorf("FoundStatus = %q, want %q", got.FoundStatus, model.FoundStatusFound)
	}
}

// TestMarkAuditingFound_StagedRow tests the expected path: a staged row
// transitions to Found with geolocation stamped.
func TestMarkAuditingFound_StagedRow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	row := &model.AuditingRow{Asset: model.Asset{Tag: "A-3", Name: "Desk"}}
	if err := db.UpsertAuditingRow(ctx, row); err != nil {
		t.Fatalf("UpsertAuditingRow() failed: %v", err)
	}

	alt := 210.5
	geo := &model.Geo{Latitude: 40.123456, Longitude: -105.654321, Altitude: &alt}
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	present, err := db.MarkAuditingFound(ctx, "A-3", geo, "D-100", "40.123456, -105.654321, 210.5", ts)
	if err != nil {
		t.Fatalf("MarkAuditingFound() failed: %v", err)
	}
	if !present {
		t.Fatal("MarkAuditingFound() = false for staged row")
	}

	got, err := db.AuditingByTag(ctx, "A-3")
	if err != nil {
		t.Fatalf("AuditingByTag() failed: %v", err)
	}
	if got.FoundStatus != model.FoundStatusFound {
		t.Errorf("FoundStatus = %q, want Found", got.FoundStatus)
	}
	if got.FoundRoomTag != "D-100" {
		t.Errorf("FoundRoomTag = %q, want D-100", got.FoundRoomTag)
	}
	if got.GeoX == nil || *got.GeoX != geo.Latitude {
		t.Errorf("GeoX = %v, want %v", got.GeoX, geo.Latitude)
	}
	if got.Elevation == nil || *got.Elevation != alt {
		t.Errorf("Elevation = %v, want %v", got.Elevation, alt)
	}
	if got.FoundTimestamp == nil || !got.FoundTimestamp.Equal(ts) {
		t.Errorf("FoundTimestamp = %v, want %v", got.FoundTimestamp, ts)
	}
	if got.Location != "40.123456, -105.654321, 210.5" {
		t.Errorf("Location = %q, want the door room location", got.Location)
	}
}

// TestMarkAuditingFound_EmptyLocationPreserved tests that marking a row
// found without a room location keeps the one already stored.
func TestMarkAuditingFound_EmptyLocationPreserved(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	row := &model.AuditingRow{
		Asset:    model.Asset{Tag: "A-7", Name: "Cart"},
		Location: "39.5, -104.9, n/a",
	}
	if err := db.UpsertAuditingRow(ctx, row); err != nil {
		t.Fatalf("UpsertAuditingRow() failed: %v", err)
	}

	if _, err := db.MarkAuditingFound(ctx, "A-7", nil, "D-300", "", time.Now()); err != nil {
		t.Fatalf("MarkAuditingFound() failed: %v", err)
	}

	got, err := db.AuditingByTag(ctx, "A-7")
	if err != nil {
		t.Fatalf("AuditingByTag() failed: %v", err)
	}
	if got.Location != "39.5, -104.9, n/a" {
		t.Errorf("Location = %q, want stored value preserved", got.Location)
	}
}

// TestMarkAuditingFound_PreservesExtra tests that a row recorded as an
// unexpected find keeps Extra when rescanned.
func TestMarkAuditingFound_PreservesExtra(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	row := &model.AuditingRow{
		Asset:       model.Asset{Tag: "A-4", Name: "Unknown Asset"},
		FoundStatus: model.FoundStatusExtra,
	}
	if err := db.UpsertAuditingRow(ctx, row); err != nil {
		t.Fatalf("UpsertAuditingRow() failed: %v", err)
	}

	present, err := db.MarkAuditingFound(ctx, "A-4", nil, "D-200", "", time.Now())
	if err != nil {
		t.Fatalf("MarkAuditingFound() failed: %v", err)
	}
	if !present {
		t.Fatal("MarkAuditingFound() = false for existing row")
	}

	got, err := db.AuditingByTag(ctx, "A-4")
	if err != nil {
		t.Fatalf("AuditingByTag() failed: %v", err)
	}
	if got.FoundStatus != model.FoundStatusExtra {
		t.Errorf("FoundStatus = %q, want Extra preserved", got.FoundStatus)
	}
}

// TestMarkAuditingFound_MissingRow tests the absent-row signal used by
// the reconciler.
func TestMarkAuditingFound_MissingRow(t *testing.T) {
	db := testDB(t)

	present, err := db.MarkAuditingFound(context.Background(), "NOPE", nil, "D-1", "", time.Now())
	if err != nil {
		t.Fatalf("MarkAuditingFound() failed: %v", err)
	}
	if present {
		t.Error("MarkAuditingFound() = true for missing row")
	}
}

// TestAllAuditing_InsertionOrder tests that the batch keeps id order.
func TestAllAuditing_InsertionOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	tags := []string{"Z-9", "A-1", "M-5"}
	for _, tag := range tags {
		row := &model.AuditingRow{Asset: model.Asset{Tag: tag, Name: "thing"}}
		if err := db.UpsertAuditingRow(ctx, row); err != nil {
			t.Fatalf("UpsertAuditingRow(%s) failed: %v", tag, err)
		}
	}

	rows, err := db.AllAuditing(ctx)
	if err != nil {
		t.Fatalf("AllAuditing() failed: %v", err)
	}
	if len(rows) != len(tags) {
		t.Fatalf("len = %d, want %d", len(rows), len(tags))
	}
	for i, tag := range tags {
		if rows[i].Tag != tag {
			t.Errorf("rows[%d].Tag = %q, want %q", i, rows[i].Tag, tag)
		}
	}
}
