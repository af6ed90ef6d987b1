package gdm

import (
	"errors"
	"sync"
	"testing"
)

func TestSourceRegistry_SearchThenAdd(t *testing.T) {
	r := NewSourceRegistry()
	origin := LocalOrigin("/data/ds/files")

	if _, ok := r.Search(origin); ok {
		t.Fatal("empty registry returned a record")
	}

	id, err := r.Add(origin, nil)
	if err != nil {
		t.Fatal(err)
	}
	if id != 0 {
		t.Errorf("first id = %d, want 0", id)
	}

	again, err := r.Add(origin, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Errorf("second Add = %d, want %d", again, id)
	}
	if found, ok := r.Search(origin); !ok || found != id {
		t.Errorf("Search = %d, %v", found, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestSourceRegistry_SequentialIDs(t *testing.T) {
	r := NewSourceRegistry()
	origins := []Origin{
		LocalOrigin("/a"),
		RemoteOrigin("ds", ""),
		RemoteOrigin("ds", "public"),
		LocalOrigin("/b"),
	}
	for i, o := range origins {
		id, created, err := r.SearchOrAdd(o, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !created || id != SourceID(i) {
			t.Errorf("%s: id=%d created=%v, want %d true", o, id, created, i)
		}
	}

	records := r.Records()
	if len(records) != len(origins) {
		t.Fatalf("Records len = %d", len(records))
	}
	for i, rec := range records {
		if rec.Origin != origins[i] || rec.ID != SourceID(i) {
			t.Errorf("record %d = %+v", i, rec)
		}
	}
}

func TestSourceRegistry_RemoteOwnerDistinguishes(t *testing.T) {
	r := NewSourceRegistry()
	a, _ := r.Add(RemoteOrigin("ds", "alice"), nil)
	b, _ := r.Add(RemoteOrigin("ds", "bob"), nil)
	if a == b {
		t.Error("different owners must yield different sources")
	}
}

func TestSourceRegistry_AttachesParserOnce(t *testing.T) {
	r := NewSourceRegistry()
	origin := LocalOrigin("/a")
	first := ParserDescriptor{DatasetName: "first"}
	second := ParserDescriptor{DatasetName: "second"}

	id, _ := r.Add(origin, nil)
	if _, err := r.Add(origin, first); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Add(origin, second); err != nil {
		t.Fatal(err)
	}

	rec, ok := r.Record(id)
	if !ok {
		t.Fatal("record missing")
	}
	if rec.Parser == nil || rec.Parser.Descriptor().DatasetName != "first" {
		t.Errorf("parser = %v, want the first attached", rec.Parser)
	}
}

func TestSourceRegistry_InvalidOrigin(t *testing.T) {
	r := NewSourceRegistry()
	tests := []Origin{
		{},
		{Local: "/a", RemoteName: "ds"},
		{Local: "/a", Owner: "alice"},
	}
	for _, o := range tests {
		if _, err := r.Add(o, nil); !errors.Is(err, ErrInvalidOrigin) {
			t.Errorf("Add(%+v): expected ErrInvalidOrigin, got %v", o, err)
		}
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after invalid adds", r.Len())
	}
}

func TestSourceRegistry_RecordOutOfRange(t *testing.T) {
	r := NewSourceRegistry()
	if _, ok := r.Record(-1); ok {
		t.Error("negative id found")
	}
	if _, ok := r.Record(0); ok {
		t.Error("id in empty registry found")
	}
}

func TestSourceRegistry_ConcurrentSearchOrAdd(t *testing.T) {
	r := NewSourceRegistry()
	origin := LocalOrigin("/shared")

	const workers = 32
	ids := make([]SourceID, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _, err := r.SearchOrAdd(origin, nil)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = id
		}()
	}
	wg.Wait()

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	for i, id := range ids {
		if id != ids[0] {
			t.Errorf("worker %d got %d, want %d", i, id, ids[0])
		}
	}
}
