package gdm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeMeta(t *testing.T) {
	input := "cell\tK562\n\nantibody\tCTCF\r\nantibody\tPOLR2A\nflag\nnote\ta\tb\n"

	got, err := DecodeMeta("S_0", strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeMeta failed: %v", err)
	}
	want := SampleMeta{
		Sample: "S_0",
		Attributes: []Attribute{
			{Name: "cell", Value: "K562"},
			{Name: "antibody", Value: "CTCF"},
			{Name: "antibody", Value: "POLR2A"},
			{Name: "flag", Value: ""},
			{Name: "note", Value: "a\tb"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"CTCF", "POLR2A"}, got.Values("antibody")); diff != "" {
		t.Errorf("Values mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMeta(t *testing.T) {
	store := memoryWith(map[string]string{
		"/ds/schema.xml":  "",
		"/ds/B.gdm":       "",
		"/ds/B.gdm.meta":  "k\tb\n",
		"/ds/A.gdm":       "",
		"/ds/A.gdm.meta":  "k\ta\n",
		"/ds/profile.xml": "",
		"/ds/_A.gdm.meta": "hidden\tyes\n",
	})

	table, err := ReadMeta(t.Context(), store, "/ds")
	if err != nil {
		t.Fatalf("ReadMeta failed: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len = %d, want 2", table.Len())
	}
	if table.Samples[0].Sample != "A" || table.Samples[1].Sample != "B" {
		t.Errorf("samples out of order: %+v", table.Samples)
	}
	b, ok := table.Get("B")
	if !ok || b.Values("k")[0] != "b" {
		t.Errorf("Get(B) = %+v, %v", b, ok)
	}
	if _, ok := table.Get("missing"); ok {
		t.Error("Get(missing) found a sample")
	}
}
