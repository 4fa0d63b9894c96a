package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/sowilo/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "sowilo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(id string, status string) NodeRow {
	return NodeRow{
		ID:        id,
		File:      id + ".md",
		Title:     id,
		Status:    status,
		Tags:      []string{},
		Checksum:  "cs-" + id,
		UpdatedAt: time.Now(),
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"nodes", "links", "reviews"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAndGetNode(t *testing.T) {
	db := testDB(t)
	next := time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)
	r := NodeRow{
		ID:          "go/channels",
		File:        "go/channels.md",
		Title:       "Channels",
		Status:      "in-progress",
		NodePath:    "go",
		Type:        "concept",
		Tags:        []string{"go", "concurrency"},
		Familiarity: 3,
		SRSStage:    2,
		NextReview:  &next,
		Checksum:    "abc123",
		UpdatedAt:   time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := db.UpsertNode(r, "Channels connect goroutines.", nil); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	got, err := db.GetNode("go/channels")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if diff := cmp.Diff(r.Tags, got.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if got.NextReview == nil || !got.NextReview.Equal(next) {
		t.Errorf("next_review = %v, want %v", got.NextReview, next)
	}
	if got.Familiarity != 3 || got.SRSStage != 2 || got.Status != "in-progress" || got.NodePath != "go" {
		t.Errorf("scheduling columns not stored: %+v", got)
	}

	cs, err := db.GetChecksum("go/channels.md")
	if err != nil || cs != "abc123" {
		t.Errorf("GetChecksum = %q, %v", cs, err)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetNode("nope/nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestDependentsAndBacklinks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNode(row("go/basics", "mastered"), "body", nil)
	_ = db.UpsertNode(row("go/channels", "locked"), "body", []Link{{Target: "go/basics", Type: LinkPrerequisite}})
	_ = db.UpsertNode(row("go/select", "locked"), "body", []Link{
		{Target: "go/basics", Type: LinkPrerequisite},
		{Target: "go/basics", Type: LinkInline},
	})

	deps, err := db.Dependents("go/basics")
	if err != nil {
		t.Fatalf("Dependents: %v", err)
	}
	if diff := cmp.Diff([]string{"go/channels", "go/select"}, deps); diff != "" {
		t.Errorf("dependents mismatch (-want +got):\n%s", diff)
	}

	bl, err := db.Backlinks("go/basics")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if diff := cmp.Diff([]string{"go/select"}, bl); diff != "" {
		t.Errorf("backlinks mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteFile(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNode(row("go/del", "available"), "body", []Link{{Target: "go/target", Type: LinkInline}})

	id, err := db.DeleteFile("go/del.md")
	if err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if id != "go/del" {
		t.Errorf("deleted id = %q", id)
	}
	if cs, _ := db.GetChecksum("go/del.md"); cs != "" {
		t.Errorf("deleted node still has checksum %q", cs)
	}
	if bl, _ := db.Backlinks("go/target"); len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}

	id, err = db.DeleteFile("go/del.md")
	if err != nil || id != "" {
		t.Errorf("second delete = %q, %v; want no-op", id, err)
	}
}

func TestUpsertReplacesLinks(t *testing.T) {
	db := testDB(t)
	r := row("go/up", "available")
	_ = db.UpsertNode(r, "old body", []Link{{Target: "go/x", Type: LinkInline}})
	r.Checksum = "2"
	_ = db.UpsertNode(r, "new body", []Link{{Target: "go/y", Type: LinkInline}})

	if cs, _ := db.GetChecksum("go/up.md"); cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	if bl, _ := db.Backlinks("go/x"); len(bl) != 0 {
		t.Error("old link should be removed on upsert")
	}
	if bl, _ := db.Backlinks("go/y"); len(bl) != 1 {
		t.Error("new link should exist")
	}
}

func TestUpsertMovedID(t *testing.T) {
	db := testDB(t)
	r := row("go/old", "available")
	r.File = "go/file.md"
	_ = db.UpsertNode(r, "", nil)

	r.ID = "go/new"
	if err := db.UpsertNode(r, "", nil); err != nil {
		t.Fatalf("UpsertNode after id change: %v", err)
	}
	if _, err := db.GetNode("go/old"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale id still indexed: %v", err)
	}
}

func TestUpsert_DuplicateIDFirstPathWins(t *testing.T) {
	db := testDB(t)
	r := row("go/channels", "available")
	r.File = "misc/foo.md"
	if err := db.UpsertNode(r, "", nil); err != nil {
		t.Fatal(err)
	}

	later := r
	later.File = "zz/late.md"
	if err := db.UpsertNode(later, "", nil); !errors.Is(err, ErrDuplicateID) || !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("later file err = %v, want ErrDuplicateID", err)
	}
	if got, _ := db.GetNode("go/channels"); got.File != "misc/foo.md" {
		t.Errorf("owner = %s, want misc/foo.md", got.File)
	}

	earlier := r
	earlier.File = "a/first.md"
	if err := db.UpsertNode(earlier, "", nil); err != nil {
		t.Fatalf("earlier file: %v", err)
	}
	if got, _ := db.GetNode("go/channels"); got.File != "a/first.md" {
		t.Errorf("owner = %s, want a/first.md", got.File)
	}
}

func TestListNodes_Filters(t *testing.T) {
	db := testDB(t)
	a := row("go/a", "available")
	a.NodePath = "go"
	a.Tags = []string{"basics"}
	b := row("go/b", "locked")
	b.NodePath = "go"
	c := row("rust/c", "available")
	c.NodePath = "rust"
	for _, r := range []NodeRow{a, b, c} {
		if err := db.UpsertNode(r, "", nil); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		f    ListFilter
		want []string
	}{
		{"all", ListFilter{}, []string{"go/a", "go/b", "rust/c"}},
		{"status", ListFilter{Status: "available"}, []string{"go/a", "rust/c"}},
		{"path", ListFilter{Path: "go"}, []string{"go/a", "go/b"}},
		{"tag", ListFilter{Tag: "basics"}, []string{"go/a"}},
		{"page", ListFilter{Limit: 1, Offset: 1}, []string{"go/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total, err := db.ListNodes(tt.f)
			if err != nil {
				t.Fatalf("ListNodes: %v", err)
			}
			var got []string
			for _, r := range rows {
				got = append(got, r.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
			if tt.f.Limit == 0 && total != len(tt.want) {
				t.Errorf("total = %d, want %d", total, len(tt.want))
			}
		})
	}

	if _, _, err := db.ListNodes(ListFilter{Sort: "bogus"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("unknown sort err = %v, want ErrInvalidInput", err)
	}
}

func TestGraph_DropsDanglingEdges(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNode(row("go/a", "mastered"), "", nil)
	_ = db.UpsertNode(row("go/b", "locked"), "", []Link{
		{Target: "go/a", Type: LinkPrerequisite},
		{Target: "go/missing", Type: LinkPrerequisite},
	})

	nodes, links, err := db.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(nodes))
	}
	want := []GraphLink{{Source: "go/b", Target: "go/a", Type: LinkPrerequisite}}
	if diff := cmp.Diff(want, links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestReviews(t *testing.T) {
	db := testDB(t)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, rating := range []string{"good", "easy"} {
		_, err := db.RecordReview(ReviewRow{
			NodeID:      "go/a",
			Rating:      rating,
			Familiarity: i + 1,
			SRSStage:    i + 1,
			Status:      "in-progress",
			NextReview:  base.AddDate(0, 0, 3),
			ReviewedAt:  base.AddDate(0, 0, i),
		})
		if err != nil {
			t.Fatalf("RecordReview: %v", err)
		}
	}

	got, err := db.Reviews("go/a", 10)
	if err != nil {
		t.Fatalf("Reviews: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reviews, want 2", len(got))
	}
	if got[0].Rating != "easy" || got[1].Rating != "good" {
		t.Errorf("reviews not newest first: %+v", got)
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("review ids not assigned: %q %q", got[0].ID, got[1].ID)
	}

	if other, _ := db.Reviews("go/b", 10); len(other) != 0 {
		t.Errorf("reviews leaked across nodes: %+v", other)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	r := row("go/s", "available")
	r.Title = "Search Me"
	_ = db.UpsertNode(r, "uniqueword appears here", nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "go/s" {
		t.Errorf("search results = %+v, want 1 hit for go/s", results)
	}
}
