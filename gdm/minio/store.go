// Package minio provides a MinIO backend for gdm datasets using minio-go.
//
// Paths have the form s3://bucket/key, the same as the s3 backend, so a
// dataset can move between the two without renaming.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/justapithecus/gdm/gdm"
)

const delimiter = "/"

// ErrInvalidPath indicates a path that is not of the form s3://bucket/key.
var ErrInvalidPath = errors.New("minio: invalid path")

// API is the subset of minio-go used by the store.
type API interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	OpenObject(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// Store implements gdm.Store over a MinIO server.
type Store struct {
	client API
}

// New creates a store backed by a minio-go client.
func New(client *minio.Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("minio: client is required")
	}
	return NewWithAPI(clientAPI{client})
}

// NewWithAPI creates a store over any API implementation.
func NewWithAPI(api API) (*Store, error) {
	if api == nil {
		return nil, errors.New("minio: client is required")
	}
	return &Store{client: api}, nil
}

// ClientConfig holds configuration for creating a minio-go client.
type ClientConfig struct {
	// Endpoint is host[:port] without scheme (required).
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string

	// Token returns the session token. Optional.
	Token func() (string, error)

	Secure bool
	Region string
}

// NewClient creates a minio-go client from cfg.
func NewClient(cfg ClientConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio: endpoint is required")
	}
	var token string
	if cfg.Token != nil {
		var err error
		if token, err = cfg.Token(); err != nil {
			return nil, fmt.Errorf("minio: session token: %w", err)
		}
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, token),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: new client: %w", err)
	}
	return client, nil
}

// FromConfig builds a Store from the cloud section of a gdm configuration.
func FromConfig(cfg gdm.CloudConfig) (*Store, error) {
	client, err := NewClient(ClientConfig{
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Token:           cfg.CloudToken,
		Secure:          cfg.Secure,
		Region:          cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return New(client)
}

// Kind returns gdm.BackendCloud.
func (s *Store) Kind() gdm.Backend { return gdm.BackendCloud }

// List returns the immediate children of dir, ordered by name.
func (s *Store) List(ctx context.Context, dir string) ([]gdm.Entry, error) {
	bucket, key, err := splitPath(dir)
	if err != nil {
		return nil, err
	}
	prefix := dirPrefix(key)

	children := make(map[string]bool)
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, classify("list objects", dir, obj.Err)
		}
		rest, ok := strings.CutPrefix(obj.Key, prefix)
		if !ok || rest == "" {
			continue
		}
		name, isDir := strings.CutSuffix(rest, delimiter)
		if name == "" {
			continue
		}
		children[name] = children[name] || isDir
	}

	if len(children) == 0 {
		return nil, fmt.Errorf("minio: list %s: %w", dir, gdm.ErrNotFound)
	}

	entries := make([]gdm.Entry, 0, len(children))
	for name, isDir := range children {
		entries = append(entries, gdm.Entry{
			Name: name,
			Path: gdm.CloudScheme + bucket + delimiter + prefix + name,
			Dir:  isDir,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// IsDir reports whether any object lives under p.
func (s *Store) IsDir(ctx context.Context, p string) (bool, error) {
	bucket, key, err := splitPath(p)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: dirPrefix(key), MaxKeys: 1}) {
		if obj.Err != nil {
			return false, classify("list objects", p, obj.Err)
		}
		return true, nil
	}
	return false, nil
}

// Exists reports whether p is an object or a non-empty prefix.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	bucket, key, err := splitPath(p)
	if err != nil {
		return false, err
	}
	if key != "" {
		_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return true, nil
		}
		if !isNotFound(err) {
			return false, classify("stat object", p, err)
		}
	}
	return s.IsDir(ctx, p)
}

// Get opens the object at p.
func (s *Store) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	bucket, key, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("%w: %s names a bucket", ErrInvalidPath, p)
	}
	rc, err := s.client.OpenObject(ctx, bucket, key)
	if err != nil {
		return nil, classify("get object", p, err)
	}
	return rc, nil
}

// clientAPI adapts *minio.Client to API.
type clientAPI struct {
	*minio.Client
}

// OpenObject stats the object before returning it, so a missing key is
// reported here rather than on the first Read.
func (c clientAPI) OpenObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	obj, err := c.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}

// -----------------------------------------------------------------------------
// Paths and errors
// -----------------------------------------------------------------------------

func splitPath(p string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(p, gdm.CloudScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q lacks the %s scheme", ErrInvalidPath, p, gdm.CloudScheme)
	}
	bucket, key, _ = strings.Cut(rest, delimiter)
	if bucket == "" {
		return "", "", fmt.Errorf("%w: %q has no bucket", ErrInvalidPath, p)
	}
	return bucket, strings.Trim(key, delimiter), nil
}

func dirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + delimiter
}

func classify(op, p string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("minio: %s %s: %w", op, p, gdm.ErrNotFound)
	}
	return fmt.Errorf("minio: %s %s: %w: %w", op, p, gdm.ErrStorageUnavailable, err)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return resp.StatusCode == http.StatusNotFound
}

var _ gdm.Store = (*Store)(nil)
