package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestReadCSV_HeaderMapping tests column aliases and row parsing.
func TestReadCSV_HeaderMapping(t *testing.T) {
	csv := strings.Join([]string{
		"Asset Tag,Description,Serial Number,Department,Cost",
		"A-1,Dell Laptop,SN100,FIN01,\"$1,299.99\"",
		"A-2,Standing Desk,,FIN01,450",
	}, "\n")

	assets, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSV() failed: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("len = %d, want 2", len(assets))
	}

	a := assets[0]
	if a.Tag != "A-1" || a.Name != "Dell Laptop" || a.Serial != "SN100" || a.DeptID != "FIN01" {
		t.Errorf("assets[0] = %+v", a)
	}
	if a.Price != 1299.99 {
		t.Errorf("Price = %v, want 1299.99", a.Price)
	}

	// Blank serial falls back to the placeholder.
	if assets[1].Serial != "N/A" {
		t.Errorf("assets[1].Serial = %q, want N/A", assets[1].Serial)
	}
}

// TestReadCSV_SkipsRowsWithoutTag tests that untagged rows are dropped.
func TestReadCSV_SkipsRowsWithoutTag(t *testing.T) {
	csv := "tag,name\nA-1,Printer\n,Orphan row\nA-2,Desk\n"

	assets, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSV() failed: %v", err)
	}
	if len(assets) != 2 {
		t.Errorf("len = %d, want 2", len(assets))
	}
}

// TestReadCSV_RequiresTagColumn tests rejection of unusable manifests.
func TestReadCSV_RequiresTagColumn(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("name,serial\nPrinter,SN1\n")); err == nil {
		t.Error("ReadCSV() accepted a manifest with no tag column")
	}
}

// TestReadFile_UnsupportedExtension tests the format dispatch.
func TestReadFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.pdf")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Error("ReadFile() accepted a .pdf")
	}
}

// TestWatcher_ReportsSettledManifest tests that a dropped file is
// reported once writes go quiet.
func TestWatcher_ReportsSettledManifest(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := w.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "manifest.csv")
	if err := os.WriteFile(path, []byte("tag,name\nA-1,Printer\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Ignored extension should never surface.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-w.Events():
		if ev.Path != path {
			t.Errorf("event path = %q, want %q", ev.Path, path)
		}
	case err := <-w.Errors():
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for drop event")
	}
}

// TestWatcher_StopWithPendingTimer tests shutdown while a settle timer
// is still counting down: Stop must drain cleanly with no send on the
// closed events channel.
func TestWatcher_StopWithPendingTimer(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	if err := w.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	path := filepath.Join(dir, "manifest.csv")
	if err := os.WriteFile(path, []byte("tag,name\nA-1,Printer\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Give fsnotify a moment to deliver the write so a timer is pending,
	// then stop before the debounce window elapses.
	time.Sleep(50 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	if _, ok := <-w.Events(); ok {
		t.Error("Events() delivered after Stop()")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
}
