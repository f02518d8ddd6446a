package refsync

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/dataworks/fieldaudit/internal/api"
	"github.com/dataworks/fieldaudit/internal/model"
)

// fakeSource serves canned collections and records fetch calls.
type fakeSource struct {
	buildings   []model.Building
	rooms       []model.Room
	departments []model.Department
	custodians  []model.Custodian
	assets      []model.Asset

	assetErr error

	assetFetches int
}

func pageSlice[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func (f *fakeSource) FetchBuildings(ctx context.Context, offset, limit int) (*api.BuildingPage, error) {
	return &api.BuildingPage{Data: pageSlice(f.buildings, offset, limit), Count: len(f.buildings)}, nil
}

func (f *fakeSource) FetchRooms(ctx context.Context, offset, limit int) (*api.RoomPage, error) {
	return &api.RoomPage{Data: pageSlice(f.rooms, offset, limit), Count: len(f.rooms)}, nil
}

func (f *fakeSource) FetchDepartments(ctx context.Context, offset, limit int) (*api.DepartmentPage, error) {
	return &api.DepartmentPage{Data: pageSlice(f.departments, offset, limit), Count: len(f.departments)}, nil
}

func (f *fakeSource) FetchCustodians(ctx context.Context, offset, limit int) (*api.CustodianPage, error) {
	return &api.CustodianPage{Data: pageSlice(f.custodians, offset, limit), Count: len(f.custodians)}, nil
}

func (f *fakeSource) FetchAssets(ctx context.Context, offset, limit int) (*api.AssetPage, error) {
	f.assetFetches++
	if f.assetErr != nil {
		return nil, f.assetErr
	}
	return &api.AssetPage{Data: pageSlice(f.assets, offset, limit), Count: len(f.assets)}, nil
}

// fakeCache records upserts and serves configured local counts.
type fakeCache struct {
	counts  map[string]int
	upserts map[string]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: make(map[string]int), upserts: make(map[string]int)}
}

func (f *fakeCache) Count(ctx context.Context, table string) (int, error) {
	return f.counts[table], nil
}

func (f *fakeCache) record(kind string) error {
	f.upserts[kind]++
	return nil
}

func (f *fakeCache) UpsertBuilding(ctx context.Context, b *model.Building) error {
	return f.record("building")
}

func (f *fakeCache) UpsertRoom(ctx context.Context, r *model.Room) error {
	return f.record("room")
}

func (f *fakeCache) UpsertDepartment(ctx context.Context, d *model.Department) error {
	return f.record("department")
}

func (f *fakeCache) UpsertCustodian(ctx context.Context, c *model.Custodian) error {
	return f.record("custodian")
}

func (f *fakeCache) UpsertAsset(ctx context.Context, a *model.Asset) error {
	return f.record("asset")
}

func quietSyncer(src Source, cache Cache) *Syncer {
	s := New(src, cache)
	s.SetLogger(log.New(io.Discard, "", 0))
	return s
}

func makeAssets(n int) []model.Asset {
	out := make([]model.Asset, n)
	for i := range out {
		out[i] = model.Asset{Tag: fmt.Sprintf("A-%03d", i), Name: "Asset"}
	}
	return out
}

// TestSync_FetchesAllCollections tests a full pass into an empty cache.
func TestSync_FetchesAllCollections(t *testing.T) {
	src := &fakeSource{
		buildings:   []model.Building{{BldgID: 1, Name: "North"}},
		rooms:       []model.Room{{RoomTag: "N-101", Name: "Lab", BldgID: 1}},
		departments: []model.Department{{DeptID: "FIN01", Name: "Finance"}},
		custodians:  []model.Custodian{{Custodian: "rlee", DeptID: "FIN01"}},
		assets:      makeAssets(3),
	}
	cache := newFakeCache()

	report := quietSyncer(src, cache).Sync(context.Background())

	if report.Failed() {
		t.Fatalf("Sync() failed: %+v", report.Results)
	}
	want := map[string]int{"building": 1, "room": 1, "department": 1, "custodian": 1, "asset": 3}
	for kind, n := range want {
		if cache.upserts[kind] != n {
			t.Errorf("%s upserts = %d, want %d", kind, cache.upserts[kind], n)
		}
	}
}

// TestSync_SkipsWhenCountsMatch tests the skip heuristic: matching counts
// mean no upsert calls at all for that collection.
func TestSync_SkipsWhenCountsMatch(t *testing.T) {
	src := &fakeSource{assets: makeAssets(5)}
	cache := newFakeCache()
	cache.counts["asset_table"] = 5

	report := quietSyncer(src, cache).Sync(context.Background())

	if cache.upserts["asset"] != 0 {
		t.Errorf("asset upserts = %d, want 0 when counts match", cache.upserts["asset"])
	}
	for _, res := range report.Results {
		if res.Collection == "assets" && !res.Skipped {
			t.Error("assets result not marked skipped")
		}
	}
	// Only the count probe should have hit the source.
	if src.assetFetches != 1 {
		t.Errorf("asset fetches = %d, want 1 (count probe only)", src.assetFetches)
	}
}

// TestSync_ForceBypassesSkip tests the --force escape hatch.
func TestSync_ForceBypassesSkip(t *testing.T) {
	src := &fakeSource{assets: makeAssets(5)}
	cache := newFakeCache()
	cache.counts["asset_table"] = 5

	s := quietSyncer(src, cache)
	s.Force = true
	s.Sync(context.Background())

	if cache.upserts["asset"] != 5 {
		t.Errorf("asset upserts = %d, want 5 with Force", cache.upserts["asset"])
	}
}

// TestSync_CollectionFailureIsIsolated tests that one collection's error
// does not block the rest of the pass.
func TestSync_CollectionFailureIsIsolated(t *testing.T) {
	src := &fakeSource{
		buildings: []model.Building{{BldgID: 1, Name: "North"}},
		assetErr:  fmt.Errorf("connection reset"),
	}
	cache := newFakeCache()

	report := quietSyncer(src, cache).Sync(context.Background())

	if !report.Failed() {
		t.Fatal("Report.Failed() = false with a failing collection")
	}
	if cache.upserts["building"] != 1 {
		t.Errorf("building upserts = %d, want 1 despite asset failure", cache.upserts["building"])
	}

	var assetErrs, otherErrs int
	for _, res := range report.Results {
		if res.Err != nil {
			if res.Collection == "assets" {
				assetErrs++
			} else {
				otherErrs++
			}
		}
	}
	if assetErrs != 1 || otherErrs != 0 {
		t.Errorf("errors: assets=%d others=%d, want exactly one asset error", assetErrs, otherErrs)
	}
}

// TestSync_PagesThroughLargeCollections tests multi-page fetching.
func TestSync_PagesThroughLargeCollections(t *testing.T) {
	src := &fakeSource{assets: makeAssets(1201)}
	cache := newFakeCache()

	s := quietSyncer(src, cache)
	s.pageSize = 500
	report := s.Sync(context.Background())

	if report.Failed() {
		t.Fatalf("Sync() failed: %+v", report.Results)
	}
	if cache.upserts["asset"] != 1201 {
		t.Errorf("asset upserts = %d, want 1201", cache.upserts["asset"])
	}
}
