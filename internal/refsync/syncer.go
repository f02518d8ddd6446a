// Package refsync pulls the server's reference collections (buildings,
// rooms, departments, custodians, assets) into the local cache so lookups
// work offline.
//
// Each collection is synced independently: a failure in one does not
// block the others. A collection whose local row count already matches
// the server's count is skipped entirely, which keeps a routine refresh
// cheap on a slow link. Force disables the skip.
package refsync

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dataworks/fieldaudit/internal/api"
	"github.com/dataworks/fieldaudit/internal/model"
	"github.com/dataworks/fieldaudit/internal/store"
)

// DefaultPageSize is how many rows each bulk fetch requests.
const DefaultPageSize = 500

// Source is the slice of the remote API the syncer needs.
type Source interface {
	FetchBuildings(ctx context.Context, offset, limit int) (*api.BuildingPage, error)
	FetchRooms(ctx context.Context, offset, limit int) (*api.RoomPage, error)
	FetchDepartments(ctx context.Context, offset, limit int) (*api.DepartmentPage, error)
	FetchCustodians(ctx context.Context, offset, limit int) (*api.CustodianPage, error)
	FetchAssets(ctx context.Context, offset, limit int) (*api.AssetPage, error)
}

// Cache is the slice of the local store the syncer writes to.
type Cache interface {
	Count(ctx context.Context, table string) (int, error)
	UpsertBuilding(ctx context.Context, b *model.Building) error
	UpsertRoom(ctx context.Context, r *model.Room) error
	UpsertDepartment(ctx context.Context, d *model.Department) error
	UpsertCustodian(ctx context.Context, c *model.Custodian) error
	UpsertAsset(ctx context.Context, a *model.Asset) error
}

var _ Source = (*api.Client)(nil)
var _ Cache = (*store.DB)(nil)

// Result records the outcome of one collection's sync.
type Result struct {
	Collection string
	Skipped    bool
	Fetched    int
	Err        error
}

// Report is the outcome of a full sync pass, in collection order.
type Report struct {
	Results  []Result
	Duration time.Duration
}

// Failed reports whether any collection ended in error.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// Syncer refreshes the local cache from the remote API.
type Syncer struct {
	src      Source
	cache    Cache
	pageSize int
	logger   *log.Logger

	// Force bypasses the count-match skip and re-fetches everything.
	Force bool
}

// New creates a syncer with the default page size.
func New(src Source, cache Cache) *Syncer {
	return &Syncer{
		src:      src,
		cache:    cache,
		pageSize: DefaultPageSize,
		logger:   log.New(os.Stderr, "[refsync] ", log.LstdFlags),
	}
}

// SetLogger replaces the syncer's logger.
func (s *Syncer) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Sync refreshes all five collections in dependency order: buildings
// before rooms (rooms reference buildings), departments before
// custodians, assets last. Errors are recorded per collection and do not
// abort the pass.
func (s *Syncer) Sync(ctx context.Context) *Report {
	start := time.Now()
	report := &Report{}

	steps := []struct {
		name  string
		table string
		run   func(ctx context.Context) (int, error)
	}{
		{"buildings", "building", s.syncBuildings},
		{"rooms", "room", s.syncRooms},
		{"departments", "department", s.syncDepartments},
		{"custodians", "department_cust", s.syncCustodians},
		{"assets", "asset_table", s.syncAssets},
	}

	for _, step := range steps {
		res := Result{Collection: step.name}

		skip, err := s.shouldSkip(ctx, step.name, step.table)
		if err != nil {
			res.Err = err
			report.Results = append(report.Results, res)
			s.logger.Printf("%s: %v", step.name, err)
			continue
		}
		if skip {
			res.Skipped = true
			report.Results = append(report.Results, res)
			s.logger.Printf("%s: up to date, skipped", step.name)
			continue
		}

		n, err := step.run(ctx)
		res.Fetched = n
		res.Err = err
		report.Results = append(report.Results, res)
		if err != nil {
			s.logger.Printf("%s: fetched %d rows, then: %v", step.name, n, err)
		} else {
			s.logger.Printf("%s: fetched %d rows", step.name, n)
		}
	}

	report.Duration = time.Since(start)
	return report
}

// shouldSkip compares the local row count to the server's count for the
// collection. Counting the remote side costs one page fetch with limit 1.
func (s *Syncer) shouldSkip(ctx context.Context, name, table string) (bool, error) {
	if s.Force {
		return false, nil
	}

	local, err := s.cache.Count(ctx, table)
	if err != nil {
		return false, fmt.Errorf("failed to count local %s: %w", name, err)
	}

	remote, err := s.remoteCount(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to count remote %s: %w", name, err)
	}

	return local == remote && remote > 0, nil
}

func (s *Syncer) remoteCount(ctx context.Context, name string) (int, error) {
	switch name {
	case "buildings":
		page, err := s.src.FetchBuildings(ctx, 0, 1)
		if err != nil {
			return 0, err
		}
		return page.Count, nil
	case "rooms":
		page, err := s.src.FetchRooms(ctx, 0, 1)
		if err != nil {
			return 0, err
		}
		return page.Count, nil
	case "departments":
		page, err := s.src.FetchDepartments(ctx, 0, 1)
		if err != nil {
			return 0, err
		}
		return page.Count, nil
	case "custodians":
		page, err := s.src.FetchCustodians(ctx, 0, 1)
		if err != nil {
			return 0, err
		}
		return page.Count, nil
	case "assets":
		page, err := s.src.FetchAssets(ctx, 0, 1)
		if err != nil {
			return 0, err
		}
		return page.Count, nil
	}
	return 0, fmt.Errorf("unknown collection %q", name)
}

func (s *Syncer) syncBuildings(ctx context.Context) (int, error) {
	total := 0
	for offset := 0; ; offset += s.pageSize {
		page, err := s.src.FetchBuildings(ctx, offset, s.pageSize)
		if err != nil {
			return total, err
		}
		for i := range page.Data {
			if err := s.cache.UpsertBuilding(ctx, &page.Data[i]); err != nil {
				return total, err
			}
			total++
		}
		if len(page.Data) < s.pageSize || total >= page.Count {
			return total, nil
		}
	}
}

func (s *Syncer) syncRooms(ctx context.Context) (int, error) {
	total := 0
	for offset := 0; ; offset += s.pageSize {
		page, err := s.src.FetchRooms(ctx, offset, s.pageSize)
		if err != nil {
			return total, err
		}
		for i := range page.Data {
			if err := s.cache.UpsertRoom(ctx, &page.Data[i]); err != nil {
				return total, err
			}
			total++
		}
		if len(page.Data) < s.pageSize || total >= page.Count {
			return total, nil
		}
	}
}

func (s *Syncer) syncDepartments(ctx context.Context) (int, error) {
	total := 0
	for offset := 0; ; offset += s.pageSize {
		page, err := s.src.FetchDepartments(ctx, offset, s.pageSize)
		if err != nil {
			return total, err
		}
		for i := range page.Data {
			if err := s.cache.UpsertDepartment(ctx, &page.Data[i]); err != nil {
				return total, err
			}
			total++
		}
		if len(page.Data) < s.pageSize || total >= page.Count {
			return total, nil
		}
	}
}

func (s *Syncer) syncCustodians(ctx context.Context) (int, error) {
	total := 0
	for offset := 0; ; offset += s.pageSize {
		page, err := s.src.FetchCustodians(ctx, offset, s.pageSize)
		if err != nil {
			return total, err
		}
		for i := range page.Data {
			if err := s.cache.UpsertCustodian(ctx, &page.Data[i]); err != nil {
				return total, err
			}
			total++
		}
		if len(page.Data) < s.pageSize || total >= page.Count {
			return total, nil
		}
	}
}

func (s *Syncer) syncAssets(ctx context.Context) (int, error) {
	total := 0
	for offset := 0; ; offset += s.pageSize {
		page, err := s.src.FetchAssets(ctx, offset, s.pageSize)
		if err != nil {
			return total, err
		}
		for i := range page.Data {
			if err := s.cache.UpsertAsset(ctx, &page.Data[i]); err != nil {
				return total, err
			}
			total++
		}
		if len(page.Data) < s.pageSize || total >= page.Count {
			return total, nil
		}
	}
}
