package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sahilchouksey/face-gallery-api/model"
)

func TestSessionStoreReadMissingFile(t *testing.T) {
	store := NewSessionStore()
	doc, err := store.Read(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.VideoUploaded || doc.RegNo != "" {
		t.Fatal("expected empty document for missing file")
	}
}

func TestSessionStoreReadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewSessionStore()
	doc, err := store.Read(path)
	if err != nil {
		t.Fatalf("corrupt file should not error: %v", err)
	}
	if doc.RegNo != "" {
		t.Fatal("expected empty document for corrupt file")
	}
}

func TestSessionStoreWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewSessionStore()

	doc := &model.SessionDocument{
		SessionID: "session_110121104001",
		RegNo:     "110121104001",
		Name:      "Student 110121104001",
		Dept:      "DPT001",
		Batch:     "DPT001_2025",
	}
	if err := store.Write(path, doc); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := store.Read(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.RegNo != doc.RegNo || got.Batch != doc.Batch {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSessionStorePreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	raw := []byte(`{"regNo":"110121104001","videoUploaded":false,"legacyField":{"a":1}}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewSessionStore()
	if err := store.MarkVideoUploaded(path, "/videos/110121104001.avi", "2025-07-01T10:00:00Z"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out["legacyField"]; !ok {
		t.Fatal("unknown key dropped on rewrite")
	}
}

func TestSessionStoreMarkVideoUploadedVerifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewSessionStore()

	if err := store.Write(path, &model.SessionDocument{RegNo: "110121104001"}); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkVideoUploaded(path, "/v.avi", "2025-07-01T10:00:00Z"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	doc, err := store.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if !doc.VideoUploaded {
		t.Fatal("videoUploaded not persisted")
	}
	if doc.VideoPath != "/v.avi" {
		t.Fatalf("unexpected video path %q", doc.VideoPath)
	}
	if doc.UploadTime == "" {
		t.Fatal("upload time not persisted")
	}
}

func TestSessionStoreSnapshotRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewSessionStore()

	original := &model.SessionDocument{RegNo: "110121104001", VideoUploaded: true, VideoPath: "/old.avi"}
	if err := store.Write(path, original); err != nil {
		t.Fatal(err)
	}

	snap, err := store.Snapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil {
		t.Fatal("expected snapshot bytes")
	}

	if _, err := store.Update(path, func(d *model.SessionDocument) {
		d.VideoUploaded = false
		d.VideoPath = ""
	}); err != nil {
		t.Fatal(err)
	}

	if err := store.Restore(path, snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(snap) {
		t.Fatal("restore did not reproduce snapshot byte for byte")
	}
}

func TestSessionStoreRestoreNilRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewSessionStore()

	if err := store.Write(path, &model.SessionDocument{RegNo: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Restore(path, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected session file removed")
	}
}

func TestSessionDocumentApplyDefaults(t *testing.T) {
	doc := &model.SessionDocument{}
	doc.ApplyDefaults("110121104001", "DPT001", "2025")

	if doc.Name != "Student 110121104001" {
		t.Errorf("unexpected default name %q", doc.Name)
	}
	if doc.SessionID != "session_110121104001" {
		t.Errorf("unexpected default session id %q", doc.SessionID)
	}
	if doc.Batch != "DPT001_2025" {
		t.Errorf("unexpected default batch %q", doc.Batch)
	}
	if doc.QualityCheck != model.QualityNotTested {
		t.Errorf("unexpected default quality %q", doc.QualityCheck)
	}

	// Existing values stay put.
	doc2 := &model.SessionDocument{Name: "Real Name", QualityCheck: model.QualityPass}
	doc2.ApplyDefaults("110121104001", "DPT001", "2025")
	if doc2.Name != "Real Name" || doc2.QualityCheck != model.QualityPass {
		t.Fatal("defaults overwrote existing values")
	}
}
