package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// MockS3Client is an in-memory test double for API. Objects are keyed by
// bucket and key.
type MockS3Client struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// PageSize limits the keys returned per ListObjectsV2 page. Zero means
	// unlimited unless the request sets MaxKeys.
	PageSize int

	// Err, when set, is returned by every call.
	Err error

	// Call counters for test assertions
	ListObjectsV2Calls int
	GetObjectCalls     int
}

// NewMockS3Client creates a new mock S3 client for testing.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{objects: make(map[string][]byte)}
}

// Put stores an object.
func (m *MockS3Client) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = append([]byte(nil), data...)
}

// GetObject implements API.GetObject for testing.
func (m *MockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	m.GetObjectCalls++
	data, exists := m.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	err := m.Err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// HeadObject implements API.HeadObject for testing.
func (m *MockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.RLock()
	_, exists := m.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	err := m.Err
	m.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &smithyAPIError{code: "NotFound", message: "not found"}
	}
	return &s3.HeadObjectOutput{}, nil
}

// ListObjectsV2 implements API.ListObjectsV2 for testing.
//
// Delimiter grouping, MaxKeys and continuation tokens are honored. The
// continuation token is the last name returned on the previous page.
func (m *MockS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	bucketPrefix := aws.ToString(params.Bucket) + "/"
	prefix := aws.ToString(params.Prefix)
	delim := aws.ToString(params.Delimiter)

	m.mu.Lock()
	m.ListObjectsV2Calls++
	err := m.Err
	var keys []string
	for k := range m.objects {
		if key, ok := strings.CutPrefix(k, bucketPrefix); ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	// Collapse keys into common prefixes when a delimiter is given.
	type listed struct {
		name   string
		prefix bool
	}
	seen := make(map[string]bool)
	var names []listed
	for _, key := range keys {
		if delim != "" {
			rest := key[len(prefix):]
			if i := strings.Index(rest, delim); i >= 0 {
				cp := prefix + rest[:i+len(delim)]
				if !seen[cp] {
					seen[cp] = true
					names = append(names, listed{name: cp, prefix: true})
				}
				continue
			}
		}
		names = append(names, listed{name: key})
	}
	sort.Slice(names, func(i, j int) bool { return names[i].name < names[j].name })

	if after := aws.ToString(params.ContinuationToken); after != "" {
		i := sort.Search(len(names), func(i int) bool { return names[i].name > after })
		names = names[i:]
	}

	limit := m.PageSize
	if n := int(aws.ToInt32(params.MaxKeys)); n > 0 && (limit == 0 || n < limit) {
		limit = n
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if limit > 0 && len(names) > limit {
		names = names[:limit]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(names[len(names)-1].name)
	}

	for _, n := range names {
		if n.prefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(n.name)})
		} else {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(n.name)})
		}
	}
	return out, nil
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string {
	return e.message
}

func (e *smithyAPIError) ErrorCode() string {
	return e.code
}

func (e *smithyAPIError) ErrorMessage() string {
	return e.message
}

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}

var _ API = (*MockS3Client)(nil)
