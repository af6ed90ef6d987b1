// Package s3 provides an S3 backend for gdm datasets.
//
// Paths have the form s3://bucket/key. Object storage has no directories:
// listings use the "/" delimiter, and a common prefix (a listed name ending
// in "/") is reported as a directory entry.
//
// This backend supports AWS S3, MinIO, LocalStack and other S3-compatible
// object stores through aws-sdk-go-v2.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/justapithecus/gdm/gdm"
)

const delimiter = "/"

// ErrInvalidPath indicates a path that is not of the form s3://bucket/key.
var ErrInvalidPath = errors.New("s3: invalid path")

// API defines the subset of the S3 client interface used by the store.
// This enables testing with mock implementations.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store implements gdm.Store over an S3-compatible backend.
type Store struct {
	client API
}

// New creates an S3 store with the given client.
//
// The client must be pre-configured with credentials, region, and endpoint.
// See NewClient.
func New(client API) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	return &Store{client: client}, nil
}

// Kind returns gdm.BackendCloud.
func (s *Store) Kind() gdm.Backend { return gdm.BackendCloud }

// List returns the immediate children of dir, ordered by name.
// Pagination is handled automatically.
func (s *Store) List(ctx context.Context, dir string) ([]gdm.Entry, error) {
	bucket, key, err := splitPath(dir)
	if err != nil {
		return nil, err
	}
	prefix := dirPrefix(key)

	children := make(map[string]bool)
	var continuationToken *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String(delimiter),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, classify("list objects", dir, err)
		}

		for _, cp := range out.CommonPrefixes {
			addChild(children, prefix, aws.ToString(cp.Prefix))
		}
		for _, obj := range out.Contents {
			addChild(children, prefix, aws.ToString(obj.Key))
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	if len(children) == 0 {
		return nil, fmt.Errorf("s3: list %s: %w", dir, gdm.ErrNotFound)
	}

	entries := make([]gdm.Entry, 0, len(children))
	for name, isDir := range children {
		entries = append(entries, gdm.Entry{
			Name: name,
			Path: joinPath(bucket, prefix+name),
			Dir:  isDir,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// addChild records the listed key under prefix. Directory-ness comes from
// a trailing delimiter; the folder marker object of prefix itself is skipped.
func addChild(children map[string]bool, prefix, listed string) {
	rest, ok := strings.CutPrefix(listed, prefix)
	if !ok || rest == "" {
		return
	}
	name, isDir := strings.CutSuffix(rest, delimiter)
	if name == "" {
		return
	}
	children[name] = children[name] || isDir
}

// IsDir reports whether any object lives under p.
func (s *Store) IsDir(ctx context.Context, p string) (bool, error) {
	bucket, key, err := splitPath(p)
	if err != nil {
		return false, err
	}
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(dirPrefix(key)),
		Delimiter: aws.String(delimiter),
		MaxKeys:   aws.Int32(1),
	})
	if err != nil {
		return false, classify("list objects", p, err)
	}
	return len(out.CommonPrefixes) > 0 || len(out.Contents) > 0, nil
}

// Exists reports whether p is an object or a non-empty prefix.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	bucket, key, err := splitPath(p)
	if err != nil {
		return false, err
	}
	if key != "" {
		_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return true, nil
		}
		if !isNotFound(err) {
			return false, classify("head object", p, err)
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

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("get object", p, err)
	}
	return out.Body, nil
}

// -----------------------------------------------------------------------------
// Paths
// -----------------------------------------------------------------------------

// splitPath splits s3://bucket/key into its bucket and key. The key has no
// leading or trailing delimiter and may be empty.
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

func joinPath(bucket, key string) string {
	return gdm.CloudScheme + bucket + delimiter + strings.TrimSuffix(key, delimiter)
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// classify maps an S3 error onto the gdm error sentinels.
func classify(op, p string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("s3: %s %s: %w", op, p, gdm.ErrNotFound)
	}
	return fmt.Errorf("s3: %s %s: %w: %w", op, p, gdm.ErrStorageUnavailable, err)
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "NoSuchBucket" || code == "404"
	}
	return false
}

var _ gdm.Store = (*Store)(nil)
