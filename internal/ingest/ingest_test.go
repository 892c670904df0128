package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sombra-labs/confluence-rag/internal/confluence"
	"github.com/sombra-labs/confluence-rag/internal/knowledge"
	"github.com/sombra-labs/confluence-rag/internal/log"
)

// fakeSource returns a fixed page set.
type fakeSource struct {
	pages []confluence.Page
	calls int
}

func (f *fakeSource) FetchAllPages(_ context.Context, _ []string) []confluence.Page {
	f.calls++
	return f.pages
}

// fakeStore tracks documents in memory and records call order.
type fakeStore struct {
	docs      map[string]*knowledge.Document
	createErr error
	updateErr error
	deleteErr error
	ops       *[]string
}

func newFakeStore(ops *[]string) *fakeStore {
	return &fakeStore{docs: map[string]*knowledge.Document{}, ops: ops}
}

func (f *fakeStore) record(op string) {
	if f.ops != nil {
		*f.ops = append(*f.ops, op)
	}
}

func (f *fakeStore) FindByPageID(_ context.Context, pageID string) (*knowledge.Document, error) {
	if doc, ok := f.docs[pageID]; ok {
		cp := *doc
		return &cp, nil
	}
	return nil, knowledge.ErrNotFound
}

func (f *fakeStore) Create(_ context.Context, doc *knowledge.Document) error {
	f.record("store.create " + doc.PageID)
	if f.createErr != nil {
		return f.createErr
	}
	cp := *doc
	f.docs[doc.PageID] = &cp
	return nil
}

func (f *fakeStore) Update(_ context.Context, doc *knowledge.Document) error {
	f.record("store.update " + doc.PageID)
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *doc
	f.docs[doc.PageID] = &cp
	return nil
}

func (f *fakeStore) Delete(_ context.Context, pageID string) error {
	f.record("store.delete " + pageID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.docs, pageID)
	return nil
}

// fakeIndex tracks vector entries and records call order.
type fakeIndex struct {
	entries   map[string]knowledge.Entry
	addErr    func(pageID string) error
	deleteErr error
	ops       *[]string
}

func newFakeIndex(ops *[]string) *fakeIndex {
	return &fakeIndex{entries: map[string]knowledge.Entry{}, ops: ops}
}

func (f *fakeIndex) record(op string) {
	if f.ops != nil {
		*f.ops = append(*f.ops, op)
	}
}

func (f *fakeIndex) Add(_ context.Context, entry knowledge.Entry) error {
	f.record("index.add " + entry.PageID)
	if f.addErr != nil {
		if err := f.addErr(entry.PageID); err != nil {
			return err
		}
	}
	f.entries[entry.PageID] = entry
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, pageID string) error {
	f.record("index.delete " + pageID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.entries, pageID)
	return nil
}

func testPage(id, title, body string) confluence.Page {
	return confluence.Page{
		ID:    id,
		Title: title,
		Type:  "page",
		Body:  &confluence.Body{Storage: &confluence.Storage{Value: body}},
		Space: &confluence.Space{Key: "ENG", Name: "Engineering"},
	}
}

func newTestOrchestrator(source PageSource, store DocumentStore, index VectorIndex, spaceKeys []string) *Orchestrator {
	return NewOrchestrator(source, store, index, spaceKeys, log.NewNop(),
		WithPageInterval(time.Microsecond))
}

func TestSyncAll_CreatesNewPages(t *testing.T) {
	var ops []string
	store := newFakeStore(&ops)
	index := newFakeIndex(&ops)
	source := &fakeSource{pages: []confluence.Page{
		testPage("100", "Alpha", "<p>alpha body</p>"),
	}}

	o := newTestOrchestrator(source, store, index, nil)
	report := o.SyncAll(context.Background())

	if report.Processed != 1 || report.Errors != 0 || report.Skipped != 0 {
		t.Fatalf("report = %+v, want 1 processed", report)
	}

	// New pages write the vector entry before the durable record.
	want := []string{"index.add 100", "store.create 100"}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Errorf("operation order = %v, want %v", ops, want)
	}

	doc := store.docs["100"]
	if doc == nil || doc.Title != "Alpha" || doc.SpaceKey != "ENG" {
		t.Errorf("stored document = %+v", doc)
	}

	entry := index.entries["100"]
	if entry.Metadata["type"] != knowledge.SourceType {
		t.Errorf("metadata type = %q, want %q", entry.Metadata["type"], knowledge.SourceType)
	}
	if entry.Metadata["title"] != "Alpha" || entry.Metadata["spaceKey"] != "ENG" || entry.Metadata["spaceName"] != "Engineering" {
		t.Errorf("metadata = %v", entry.Metadata)
	}
}

func TestSyncAll_UpdatesExistingPages(t *testing.T) {
	var ops []string
	store := newFakeStore(&ops)
	index := newFakeIndex(&ops)
	store.docs["100"] = &knowledge.Document{ID: 7, PageID: "100", Title: "Old", Content: "old"}

	source := &fakeSource{pages: []confluence.Page{
		testPage("100", "New Title", "<p>new body</p>"),
	}}

	o := newTestOrchestrator(source, store, index, nil)
	report := o.SyncAll(context.Background())

	if report.Processed != 1 {
		t.Fatalf("report = %+v, want 1 processed", report)
	}

	// Updates replace the vector delete-then-add, then touch the record.
	want := []string{"index.delete 100", "index.add 100", "store.update 100"}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Errorf("operation order = %v, want %v", ops, want)
	}

	doc := store.docs["100"]
	if doc.Title != "New Title" || doc.ID != 7 {
		t.Errorf("updated document = %+v, want title replaced and ID kept", doc)
	}
}

func TestSyncAll_Idempotent(t *testing.T) {
	store := newFakeStore(nil)
	index := newFakeIndex(nil)
	source := &fakeSource{pages: []confluence.Page{
		testPage("100", "Alpha", "<p>alpha</p>"),
		testPage("200", "Beta", "<p>beta</p>"),
	}}

	o := newTestOrchestrator(source, store, index, nil)
	o.SyncAll(context.Background())
	o.SyncAll(context.Background())

	if len(store.docs) != 2 {
		t.Errorf("store holds %d documents after re-sync, want 2", len(store.docs))
	}
	if len(index.entries) != 2 {
		t.Errorf("index holds %d entries after re-sync, want 2", len(index.entries))
	}
}

func TestSyncAll_SkipsEmptyPages(t *testing.T) {
	store := newFakeStore(nil)
	index := newFakeIndex(nil)
	source := &fakeSource{pages: []confluence.Page{
		testPage("100", "Has Content", "<p>text</p>"),
		{ID: "200", Title: "No Body", Type: "page"},
		testPage("300", "Blank", "<p>   </p>"),
	}}

	o := newTestOrchestrator(source, store, index, nil)
	report := o.SyncAll(context.Background())

	if report.Processed != 1 || report.Skipped != 2 || report.Errors != 0 {
		t.Fatalf("report = %+v, want processed=1 skipped=2 errors=0", report)
	}
	if _, ok := store.docs["200"]; ok {
		t.Error("empty page must not be stored")
	}
}

func TestSyncAll_FailureIsolation(t *testing.T) {
	store := newFakeStore(nil)
	index := newFakeIndex(nil)
	index.addErr = func(pageID string) error {
		if pageID == "4" {
			return errors.New("embedding backend down")
		}
		return nil
	}

	var pages []confluence.Page
	for i := range 10 {
		id := fmt.Sprintf("%d", i)
		pages = append(pages, testPage(id, "Page "+id, "<p>body</p>"))
	}
	source := &fakeSource{pages: pages}

	o := newTestOrchestrator(source, store, index, nil)
	report := o.SyncAll(context.Background())

	if report.Processed != 9 || report.Errors != 1 {
		t.Fatalf("report = %+v, want processed=9 errors=1", report)
	}
	if _, ok := store.docs["4"]; ok {
		t.Error("failed page must not reach the store")
	}
	if _, ok := store.docs["9"]; !ok {
		t.Error("pages after the failure must still be processed")
	}
}

func TestSyncAll_ReportsDuration(t *testing.T) {
	source := &fakeSource{pages: []confluence.Page{testPage("1", "A", "<p>a</p>")}}
	o := newTestOrchestrator(source, newFakeStore(nil), newFakeIndex(nil), nil)

	report := o.SyncAll(context.Background())
	if report.Duration <= 0 {
		t.Errorf("report.Duration = %v, want > 0", report.Duration)
	}
}

func TestSyncAll_CancellationStopsRun(t *testing.T) {
	store := newFakeStore(nil)
	index := newFakeIndex(nil)

	var pages []confluence.Page
	for i := range 100 {
		id := fmt.Sprintf("%d", i)
		pages = append(pages, testPage(id, "Page "+id, "<p>body</p>"))
	}
	source := &fakeSource{pages: pages}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(source, store, index, nil, log.NewNop(),
		WithPageInterval(time.Hour))
	report := o.SyncAll(ctx)

	// The first page is processed before the pacing wait notices the
	// canceled context; nothing else runs.
	if report.Processed > 1 {
		t.Errorf("processed %d pages after cancellation, want at most 1", report.Processed)
	}
}

func TestSyncSpace_FiltersLocally(t *testing.T) {
	store := newFakeStore(nil)
	index := newFakeIndex(nil)

	hr := testPage("1", "Holidays", "<p>policy</p>")
	hr.Space = &confluence.Space{Key: "HR", Name: "People"}
	source := &fakeSource{pages: []confluence.Page{
		testPage("2", "Arch", "<p>diagrams</p>"),
		hr,
	}}

	o := newTestOrchestrator(source, store, index, []string{"ENG", "HR"})
	report := o.SyncSpace(context.Background(), "HR")

	if report.Processed != 1 {
		t.Fatalf("report = %+v, want 1 processed", report)
	}
	if _, ok := store.docs["1"]; !ok {
		t.Error("HR page missing from store")
	}
	if _, ok := store.docs["2"]; ok {
		t.Error("ENG page must be filtered out")
	}
}

func TestDeletePage(t *testing.T) {
	var ops []string
	store := newFakeStore(&ops)
	index := newFakeIndex(&ops)
	store.docs["100"] = &knowledge.Document{PageID: "100"}
	index.entries["100"] = knowledge.Entry{PageID: "100"}

	o := newTestOrchestrator(&fakeSource{}, store, index, nil)
	if err := o.DeletePage(context.Background(), "100"); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}

	want := []string{"index.delete 100", "store.delete 100"}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Errorf("operation order = %v, want %v", ops, want)
	}
	if len(store.docs) != 0 || len(index.entries) != 0 {
		t.Error("page not fully deleted")
	}
}

func TestDeletePage_IndexFailureStopsDelete(t *testing.T) {
	store := newFakeStore(nil)
	index := newFakeIndex(nil)
	index.deleteErr = errors.New("index unavailable")
	store.docs["100"] = &knowledge.Document{PageID: "100"}

	o := newTestOrchestrator(&fakeSource{}, store, index, nil)
	if err := o.DeletePage(context.Background(), "100"); err == nil {
		t.Fatal("DeletePage should propagate index failure")
	}
	if _, ok := store.docs["100"]; !ok {
		t.Error("store record must remain when index delete fails")
	}
}

func TestDeletePage_StoreFailureReported(t *testing.T) {
	store := newFakeStore(nil)
	index := newFakeIndex(nil)
	store.deleteErr = errors.New("db down")
	index.entries["100"] = knowledge.Entry{PageID: "100"}

	o := newTestOrchestrator(&fakeSource{}, store, index, nil)
	if err := o.DeletePage(context.Background(), "100"); err == nil {
		t.Fatal("DeletePage should report store failure")
	}
	// The vector entry is already gone: the page became unsearchable
	// even though its record lingers.
	if _, ok := index.entries["100"]; ok {
		t.Error("index entry should have been deleted before the store failure")
	}
}
