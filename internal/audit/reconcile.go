package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/dataworks/fieldaudit/internal/model"
	"github.com/dataworks/fieldaudit/internal/store"
)

// Remote is the slice of the API client the reconciler needs for
// unexpected finds.
type Remote interface {
	AssetByTag(ctx context.Context, tag, deptID string) (*model.Asset, error)
}

// Reconciler resolves each scanned tag's authoritative found-status
// against the working table, falling back to the server for tags that
// were not pre-staged.
type Reconciler struct {
	db     *store.DB
	remote Remote
	deptID string
}

// NewReconciler creates a reconciler for one department's audit.
func NewReconciler(db *store.DB, remote Remote, deptID string) *Reconciler {
	return &Reconciler{db: db, remote: remote, deptID: deptID}
}

// UpdateFoundStatus records that tag was physically located at
// foundRoomTag with an optional geolocation reading. location is the
// door's formatted room location and is stamped onto the row.
//
// The expected path is a tag already staged in the working table: it is
// marked Found in place. A tag the table does not know is an unexpected
// find: the server is asked for its metadata and a full row is inserted
// as Extra, or a placeholder row when the server does not recognize the
// tag either. A scan is never silently dropped.
func (r *Reconciler) UpdateFoundStatus(ctx context.Context, tag string, geo *model.Geo, foundRoomTag, location string) error {
	now := time.Now().UTC()

	present, err := r.db.MarkAuditingFound(ctx, tag, geo, foundRoomTag, location, now)
	if err != nil {
		return fmt.Errorf("failed to mark %s found: %w", tag, err)
	}
	if present {
		return nil
	}

	asset, err := r.remote.AssetByTag(ctx, tag, r.deptID)
	if err != nil {
		// Transient lookup failure. The caller collects it as a
		// partial-save failure and the user retries the tag.
		return fmt.Errorf("failed to resolve unexpected tag %s: %w", tag, err)
	}
	if asset == nil {
		asset = &model.Asset{
			Tag:    tag,
			Name:   "Unknown Asset",
			Serial: "N/A",
			DeptID: r.deptID,
		}
	}

	row := &model.AuditingRow{
		Asset:          *asset,
		FoundStatus:    model.FoundStatusExtra,
		FoundRoomTag:   foundRoomTag,
		FoundTimestamp: &now,
		Location:       location,
	}
	if geo != nil {
		row.GeoX = &geo.Latitude
		row.GeoY = &geo.Longitude
		row.Elevation = geo.Altitude
	}
	if err := r.db.UpsertAuditingRow(ctx, row); err != nil {
		return fmt.Errorf("failed to record extra asset %s: %w", tag, err)
	}
	return nil
}
