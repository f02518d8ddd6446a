// Package audit owns the state of one active audit: the selected door,
// the working list of scanned assets, and the transitions of each asset's
// found-status. All durable writes go through the working table in the
// local store; door context lives only in memory for the duration of a
// scanning sequence.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dataworks/fieldaudit/internal/api"
	"github.com/dataworks/fieldaudit/internal/model"
	"github.com/dataworks/fieldaudit/internal/store"
)

// ScanCooldown is the minimum interval between accepted scans. Camera
// scanners fire the same code several times per second; anything inside
// the window is dropped.
const ScanCooldown = 400 * time.Millisecond

// ErrScanLocked is returned for a scan arriving inside the cooldown window.
var ErrScanLocked = errors.New("scan ignored: cooldown active")

// ErrNoDoor is returned for terminal actions that require a selected door.
var ErrNoDoor = errors.New("no door selected")

// ErrNothingPicked is returned by SaveWork when the picked list is empty.
var ErrNothingPicked = errors.New("no assets picked")

// Door is the transient location context for a scanning sequence.
type Door struct {
	RoomTag      string
	RoomLocation string
	BuildingName string
}

// Picked is one asset on the working list for the current door.
type Picked struct {
	Tag    string
	Name   string
	Serial string
	Geo    *model.Geo
}

// serialFromTag synthesizes a placeholder serial for a tag the local
// cache does not recognize, from the last four characters of the tag.
func serialFromTag(tag string) string {
	if len(tag) > 4 {
		tag = tag[len(tag)-4:]
	}
	return "SN-" + tag
}

// ScanKind tells the caller how a scan event was interpreted.
type ScanKind int

const (
	ScanIgnored ScanKind = iota
	ScanDoorSelected
	ScanAssetPicked
	ScanDuplicate
)

// ScanResult reports the interpretation of one scan event.
type ScanResult struct {
	Kind  ScanKind
	Door  *Door
	Asset *Picked
}

// PartialSaveError reports the tags whose found-status update failed
// during SaveWork. The remaining updates were still applied.
type PartialSaveError struct {
	Failed []string
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("partial save: %d asset(s) failed: %s", len(e.Failed), strings.Join(e.Failed, ", "))
}

// Manifester is the slice of the API client used to stage an audit.
type Manifester interface {
	StartAudit(ctx context.Context, deptID string) (*api.Manifest, error)
}

// Submitter is the slice of the API client used to complete an audit.
type Submitter interface {
	CompleteAudit(ctx context.Context, req *api.CompleteAuditRequest) (*api.Ack, error)
}

// Session is the state machine for one department audit.
//
// States: NoDoorSelected (currentDoor == nil) and DoorSelected. Any scan
// in NoDoorSelected becomes the door; subsequent scans pick assets until
// the next door scan or a terminal action resets the list.
type Session struct {
	db     *store.DB
	recon  *Reconciler
	sink   EventSink
	logger *log.Logger

	deptID   string
	deptName string
	auditID  string

	cooldown  time.Duration
	geoSource func(ctx context.Context) *model.Geo

	mu          sync.Mutex
	currentDoor *Door
	picked      []Picked
	lockedUntil time.Time
}

// NewSession creates a session for one department. remote is used for
// unexpected-find lookups during reconciliation.
func NewSession(db *store.DB, remote Remote, deptID, deptName string) *Session {
	return &Session{
		db:       db,
		recon:    NewReconciler(db, remote, deptID),
		sink:     NopSink{},
		logger:   log.New(os.Stderr, "[audit] ", log.LstdFlags),
		cooldown: ScanCooldown,
		deptID:   deptID,
		deptName: deptName,
	}
}

// SetSink routes session events to sink. Pass nil to discard.
func (s *Session) SetSink(sink EventSink) {
	if sink == nil {
		sink = NopSink{}
	}
	s.sink = sink
}

// SetGeoSource installs the reader SaveWork uses for its location
// reading. Pass nil to fall back to each pick's scan-time reading.
func (s *Session) SetGeoSource(src func(ctx context.Context) *model.Geo) {
	s.geoSource = src
}

// SetLogger replaces the session's logger.
func (s *Session) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

// AuditID returns the identifier of the staged audit, or "" before Start.
func (s *Session) AuditID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auditID
}

// Door returns the current door context, or nil in NoDoorSelected.
func (s *Session) Door() *Door {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentDoor == nil {
		return nil
	}
	d := *s.currentDoor
	return &d
}

// PickedAssets returns a copy of the working list for the current door.
func (s *Session) PickedAssets() []Picked {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Picked, len(s.picked))
	copy(out, s.picked)
	return out
}

// Start stages the expected-asset manifest for the session's department
// into the working table, all rows with found-status unset. The audit id
// comes from the server when it assigns one, otherwise a fresh UUID.
func (s *Session) Start(ctx context.Context, src Manifester) error {
	manifest, err := src.StartAudit(ctx, s.deptID)
	if err != nil {
		return fmt.Errorf("failed to fetch audit manifest: %w", err)
	}

	auditID := manifest.AuditID
	if auditID == "" {
		auditID = uuid.NewString()
	}

	for i := range manifest.Data {
		row := &model.AuditingRow{
			Asset:   manifest.Data[i],
			AuditID: auditID,
		}
		if err := s.db.UpsertAuditingRow(ctx, row); err != nil {
			return fmt.Errorf("failed to stage asset %s: %w", row.Tag, err)
		}
	}

	s.mu.Lock()
	s.auditID = auditID
	s.mu.Unlock()

	s.logger.Printf("staged %d expected assets for dept %s (audit %s)", len(manifest.Data), s.deptID, auditID)
	s.sink.Emit(Event{
		Type:      EventAuditStarted,
		Detail:    fmt.Sprintf("%d assets staged", len(manifest.Data)),
		Timestamp: time.Now(),
	})
	return nil
}

// Scan interprets one scan event. In NoDoorSelected the code becomes the
// door and the working list is cleared; in DoorSelected the code is
// resolved against the local asset cache and appended to the list, with
// repeat scans of the same tag ignored. geo may be nil when the location
// read was denied or timed out.
func (s *Session) Scan(ctx context.Context, code string, geo *model.Geo) (*ScanResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &ScanResult{Kind: ScanIgnored}, nil
	}

	s.mu.Lock()
	now := time.Now()
	if now.Before(s.lockedUntil) {
		s.mu.Unlock()
		return &ScanResult{Kind: ScanIgnored}, ErrScanLocked
	}
	s.lockedUntil = now.Add(s.cooldown)

	if s.currentDoor == nil {
		door := &Door{
			RoomTag:      code,
			RoomLocation: geo.RoomLocation(),
			BuildingName: "Unknown",
		}
		if room, err := s.db.RoomByTag(ctx, code); err == nil && room != nil {
			if b, err := s.db.BuildingByID(ctx, room.BldgID); err == nil && b != nil {
				door.BuildingName = b.Name
			}
		}
		s.currentDoor = door
		s.picked = s.picked[:0]
		s.mu.Unlock()

		s.logger.Printf("door selected: %s (%s)", door.RoomTag, door.RoomLocation)
		s.sink.Emit(Event{Type: EventDoorSelected, RoomTag: door.RoomTag, Timestamp: now})
		return &ScanResult{Kind: ScanDoorSelected, Door: door}, nil
	}

	for i := range s.picked {
		if s.picked[i].Tag == code {
			p := s.picked[i]
			s.mu.Unlock()
			return &ScanResult{Kind: ScanDuplicate, Asset: &p}, nil
		}
	}
	s.mu.Unlock()

	pick := Picked{Tag: code, Geo: geo}
	if asset, err := s.db.AssetByTag(ctx, code); err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", code, err)
	} else if asset != nil {
		pick.Name = asset.Name
		pick.Serial = asset.Serial
	} else {
		pick.Name = "Unknown Asset"
		pick.Serial = serialFromTag(code)
	}

	s.mu.Lock()
	if s.currentDoor == nil {
		// Door was reset while we were looking the asset up.
		s.mu.Unlock()
		return &ScanResult{Kind: ScanIgnored}, nil
	}
	s.picked = append(s.picked, pick)
	door := *s.currentDoor
	s.mu.Unlock()

	s.logger.Printf("picked %s (%s) at %s", pick.Tag, pick.Name, door.RoomTag)
	s.sink.Emit(Event{Type: EventAssetPicked, Tag: pick.Tag, RoomTag: door.RoomTag, Timestamp: now})
	return &ScanResult{Kind: ScanAssetPicked, Asset: &pick, Door: &door}, nil
}

// RemovePicked drops a tag from the working list before it is saved.
func (s *Session) RemovePicked(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.picked {
		if s.picked[i].Tag == tag {
			s.picked = append(s.picked[:i], s.picked[i+1:]...)
			return true
		}
	}
	return false
}

// ResetDoor discards the current door and picked list without touching
// the working table.
func (s *Session) ResetDoor() {
	s.mu.Lock()
	s.currentDoor = nil
	s.picked = s.picked[:0]
	s.mu.Unlock()
}

// SaveWork commits each picked asset's found-status through the
// reconciler. One fresh location reading is taken at save time and
// applied to every pick; picks keep their scan-time reading only when
// no geo source is installed. Updates are independent: one failure does
// not block its siblings. On any failure the session still returns to
// NoDoorSelected and the failed tags come back in a PartialSaveError so
// the user can rescan them.
func (s *Session) SaveWork(ctx context.Context) error {
	s.mu.Lock()
	if s.currentDoor == nil {
		s.mu.Unlock()
		return ErrNoDoor
	}
	if len(s.picked) == 0 {
		s.mu.Unlock()
		return ErrNothingPicked
	}
	door := *s.currentDoor
	picked := make([]Picked, len(s.picked))
	copy(picked, s.picked)
	s.mu.Unlock()

	var saveGeo *model.Geo
	if s.geoSource != nil {
		saveGeo = s.geoSource(ctx)
	}

	var failed []string
	for _, p := range picked {
		geo := saveGeo
		if s.geoSource == nil {
			geo = p.Geo
		}
		if err := s.recon.UpdateFoundStatus(ctx, p.Tag, geo, door.RoomTag, door.RoomLocation); err != nil {
			s.logger.Printf("save failed for %s: %v", p.Tag, err)
			failed = append(failed, p.Tag)
		}
	}

	s.ResetDoor()

	saved := len(picked) - len(failed)
	s.logger.Printf("saved %d asset(s) for door %s", saved, door.RoomTag)
	s.sink.Emit(Event{
		Type:      EventWorkSaved,
		RoomTag:   door.RoomTag,
		Detail:    fmt.Sprintf("%d saved, %d failed", saved, len(failed)),
		Timestamp: time.Now(),
	})

	if len(failed) > 0 {
		sort.Strings(failed)
		return &PartialSaveError{Failed: failed}
	}
	return nil
}

// Finish reads the entire working table and submits it to the server with
// the department name and submitter credentials. The table is not cleared
// here, so a failed submission can be retried without re-scanning; Stop
// clears it once the caller is satisfied.
func (s *Session) Finish(ctx context.Context, dst Submitter, email, pw string) (*api.Ack, error) {
	rows, err := s.db.AllAuditing(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read working table: %w", err)
	}

	ack, err := dst.CompleteAudit(ctx, &api.CompleteAuditRequest{
		Data:     rows,
		DeptName: s.deptName,
		Email:    email,
		PW:       pw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit audit: %w", err)
	}

	s.logger.Printf("submitted %d row(s) for dept %s", len(rows), s.deptName)
	s.sink.Emit(Event{
		Type:      EventAuditFinished,
		Detail:    fmt.Sprintf("%d rows submitted", len(rows)),
		Timestamp: time.Now(),
	})
	return ack, nil
}

// Stop truncates the working table and returns to NoDoorSelected,
// abandoning any in-progress door or picked list.
func (s *Session) Stop(ctx context.Context) error {
	if err := s.db.ClearAuditing(ctx); err != nil {
		return fmt.Errorf("failed to clear working table: %w", err)
	}
	s.ResetDoor()

	s.mu.Lock()
	s.auditID = ""
	s.mu.Unlock()

	s.sink.Emit(Event{Type: EventAuditStopped, Timestamp: time.Now()})
	return nil
}
