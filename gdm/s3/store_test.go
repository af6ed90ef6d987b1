package s3

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/go-cmp/cmp"

	"github.com/justapithecus/gdm/gdm"
	"github.com/justapithecus/gdm/internal/testutil"
)

func newTestStore(t *testing.T) (*Store, *MockS3Client) {
	t.Helper()
	mock := NewMockS3Client()
	store, err := New(mock)
	if err != nil {
		t.Fatal(err)
	}
	return store, mock
}

func TestNew_NilClient(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil client")
	}
}

func TestStore_List(t *testing.T) {
	store, mock := newTestStore(t)
	mock.Put("bucket", "ds/files/S_00000.gdm", nil)
	mock.Put("bucket", "ds/files/S_00000.gdm.meta", nil)
	mock.Put("bucket", "ds/info.txt", nil)
	mock.Put("bucket", "ds/", nil) // folder marker
	mock.Put("bucket", "dsx/other", nil)
	mock.Put("other", "ds/foreign", nil)

	got, err := store.List(t.Context(), "s3://bucket/ds/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []gdm.Entry{
		{Name: "files", Path: "s3://bucket/ds/files", Dir: true},
		{Name: "info.txt", Path: "s3://bucket/ds/info.txt"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_List_BucketRoot(t *testing.T) {
	store, mock := newTestStore(t)
	mock.Put("bucket", "a/x", nil)
	mock.Put("bucket", "b", nil)

	got, err := store.List(t.Context(), "s3://bucket")
	if err != nil {
		t.Fatal(err)
	}
	want := []gdm.Entry{
		{Name: "a", Path: "s3://bucket/a", Dir: true},
		{Name: "b", Path: "s3://bucket/b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_List_Paginates(t *testing.T) {
	store, mock := newTestStore(t)
	mock.PageSize = 2
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		mock.Put("bucket", "ds/"+k, nil)
	}

	got, err := store.List(t.Context(), "s3://bucket/ds")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Errorf("entries = %d, want 5", len(got))
	}
	if mock.ListObjectsV2Calls != 3 {
		t.Errorf("ListObjectsV2 calls = %d, want 3", mock.ListObjectsV2Calls)
	}
}

func TestStore_List_Missing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.List(t.Context(), "s3://bucket/none"); !errors.Is(err, gdm.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Errors(t *testing.T) {
	store, mock := newTestStore(t)
	mock.Err = errors.New("connection refused")

	_, err := store.List(t.Context(), "s3://bucket/ds")
	if !errors.Is(err, gdm.ErrStorageUnavailable) {
		t.Errorf("List: expected ErrStorageUnavailable, got %v", err)
	}
	if errors.Is(err, gdm.ErrNotFound) {
		t.Error("unavailable error also matched ErrNotFound")
	}
	if _, err := store.Get(t.Context(), "s3://bucket/ds/x"); !errors.Is(err, gdm.ErrStorageUnavailable) {
		t.Errorf("Get: expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := store.Exists(t.Context(), "s3://bucket/ds/x"); !errors.Is(err, gdm.ErrStorageUnavailable) {
		t.Errorf("Exists: expected ErrStorageUnavailable, got %v", err)
	}
}

func TestStore_InvalidPath(t *testing.T) {
	store, _ := newTestStore(t)
	for _, p := range []string{"/local/path", "s3://", "s3:///key"} {
		if _, err := store.List(t.Context(), p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("List(%q): expected ErrInvalidPath, got %v", p, err)
		}
	}
	if _, err := store.Get(t.Context(), "s3://bucket"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Get(bucket): expected ErrInvalidPath, got %v", err)
	}
}

func TestStore_GetExistsIsDir(t *testing.T) {
	ctx := t.Context()
	store, mock := newTestStore(t)
	mock.Put("bucket", "ds/files/S_0.gdm", []byte("chr1\t1\t2\n"))

	rc, err := store.Get(ctx, "s3://bucket/ds/files/S_0.gdm")
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil || string(data) != "chr1\t1\t2\n" {
		t.Errorf("Get = %q, %v", data, err)
	}

	if _, err := store.Get(ctx, "s3://bucket/ds/missing"); !errors.Is(err, gdm.ErrNotFound) {
		t.Errorf("Get missing: expected ErrNotFound, got %v", err)
	}

	checks := []struct {
		path          string
		exists, isDir bool
	}{
		{"s3://bucket/ds/files/S_0.gdm", true, false},
		{"s3://bucket/ds/files", true, true},
		{"s3://bucket/ds/files/", true, true},
		{"s3://bucket/ds/nope", false, false},
	}
	for _, c := range checks {
		exists, err := store.Exists(ctx, c.path)
		if err != nil || exists != c.exists {
			t.Errorf("Exists(%s) = %v, %v; want %v", c.path, exists, err, c.exists)
		}
		isDir, err := store.IsDir(ctx, c.path)
		if err != nil || isDir != c.isDir {
			t.Errorf("IsDir(%s) = %v, %v; want %v", c.path, isDir, err, c.isDir)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"NotFound code", &smithyAPIError{code: "NotFound"}, true},
		{"NoSuchBucket code", &smithyAPIError{code: "NoSuchBucket"}, true},
		{"AccessDenied", &smithyAPIError{code: "AccessDenied"}, false},
		{"plain", errors.New("boom"), false},
		{"fs", fs.ErrNotExist, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.want {
				t.Errorf("isNotFound = %v, want %v", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Loader integration
// -----------------------------------------------------------------------------

type countingEngine struct {
	ids []string
}

func (e *countingEngine) CreateIndex(_ context.Context, sourceID string, _ gdm.ParserDescriptor) (gdm.IndexRef, error) {
	e.ids = append(e.ids, sourceID)
	return gdm.IndexRef(len(e.ids)), nil
}

func TestLoader_CloudDataset(t *testing.T) {
	store, mock := newTestStore(t)
	for p, data := range testutil.Samples(2).Under("ds/files") {
		mock.Put("bucket", p, data)
	}
	mock.Put("bucket", "ds/info.txt", []byte("info"))

	engine := &countingEngine{}
	l, err := gdm.NewLoader(engine,
		gdm.WithCloudStore(store),
		gdm.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatal(err)
	}

	h, err := l.LoadFromPath(t.Context(), "s3://bucket/ds", nil)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if h.PathOrName != "s3://bucket/ds/files" {
		t.Errorf("PathOrName = %q", h.PathOrName)
	}

	again, err := l.LoadFromPath(t.Context(), "s3://bucket/ds/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.Sources[0] != h.Sources[0] {
		t.Error("same cloud dataset registered twice")
	}

	result, err := l.MaterializeFromPath(t.Context(), "s3://bucket/ds", nil)
	if err != nil {
		t.Fatalf("MaterializeFromPath failed: %v", err)
	}
	if result.Regions.Len() != 4 || result.Meta.Len() != 2 {
		t.Errorf("materialized %d regions, %d samples", result.Regions.Len(), result.Meta.Len())
	}
}

func TestLoader_CloudCanonicalPathReloads(t *testing.T) {
	store, mock := newTestStore(t)
	for p, data := range testutil.Samples(1).Under("ds/files") {
		mock.Put("bucket", p, data)
	}

	l, err := gdm.NewLoader(&countingEngine{}, gdm.WithCloudStore(store))
	if err != nil {
		t.Fatal(err)
	}

	h, err := l.LoadFromPath(t.Context(), "s3://bucket/ds", nil)
	if err != nil {
		t.Fatal(err)
	}
	again, err := l.LoadFromPath(t.Context(), h.PathOrName, nil)
	if err != nil {
		t.Fatalf("reloading %s failed: %v", h.PathOrName, err)
	}
	if again.PathOrName != h.PathOrName || again.Sources[0] != h.Sources[0] {
		t.Errorf("reload = %q %v, want %q %v", again.PathOrName, again.Sources, h.PathOrName, h.Sources)
	}
}

func TestLoader_CloudUnavailable(t *testing.T) {
	store, mock := newTestStore(t)
	mock.Err = &smithyAPIError{code: "AccessDenied", message: "access denied"}

	l, err := gdm.NewLoader(&countingEngine{}, gdm.WithCloudStore(store))
	if err != nil {
		t.Fatal(err)
	}
	_, err = l.LoadFromPath(t.Context(), "s3://bucket/ds", nil)
	if !errors.Is(err, gdm.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestTokenCredentials(t *testing.T) {
	calls := 0
	provider := TokenCredentials("AK", "SK", func() (string, error) {
		calls++
		return "tok", nil
	})

	creds, err := provider.Retrieve(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	want := aws.Credentials{AccessKeyID: "AK", SecretAccessKey: "SK", SessionToken: "tok", Source: "gdm"}
	if diff := cmp.Diff(want, creds); diff != "" {
		t.Errorf("credentials (-want +got):\n%s", diff)
	}

	failing := TokenCredentials("AK", "SK", func() (string, error) { return "", errors.New("no token") })
	if _, err := failing.Retrieve(t.Context()); err == nil {
		t.Error("expected token error")
	}
}

func TestNewClient_RequiresRegion(t *testing.T) {
	if _, err := NewClient(t.Context(), ClientConfig{}); err == nil {
		t.Error("expected error without region")
	}
}

func TestFromConfig(t *testing.T) {
	store, err := FromConfig(t.Context(), gdm.CloudConfig{
		Provider:        gdm.ProviderS3,
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		UsePathStyle:    true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if store.Kind() != gdm.BackendCloud {
		t.Errorf("Kind = %v", store.Kind())
	}
}
