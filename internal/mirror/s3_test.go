package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "github.com/PublicLifeLab/gehl-backend/internal/config"
)

// fakeBucket answers the PUT and DELETE object calls the mirror makes.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (f *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return &http.Response{StatusCode: http.StatusInternalServerError, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{}}, nil
	}

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = decodeChunked(body)
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{"ETag": {`"etag"`}}}, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
}

// decodeChunked strips a single-chunk aws-chunked envelope if present.
func decodeChunked(b []byte) []byte {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) >= 3 && strings.HasPrefix(parts[2], "0") {
		if i := strings.IndexByte(parts[0], ';'); i >= 0 {
			parts[0] = parts[0][:i]
		}
		return []byte(parts[1])
	}
	return b
}

func newTestMirror(t *testing.T, bucket *fakeBucket) *S3 {
	t.Helper()
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")

	m, err := NewS3(context.Background(), appconfig.Mirror{
		Bucket:    "gehl-studies",
		Endpoint:  "https://mock.s3.local",
		PathStyle: true,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: bucket}
		o.Credentials = credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.Retryer = aws.NopRetryer{}
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return m
}

func TestS3PutAndDeleteStudy(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}}
	m := newTestMirror(t, bucket)
	ctx := context.Background()

	doc := StudyDocument{
		StudyID:         uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		UserID:          uuid.New(),
		Title:           "Main Street activity",
		Type:            "activity",
		ProtocolVersion: "1.0",
		Fields:          []string{"gender", "location"},
		TableName:       "gehl_11111111111111111111111111111111",
		CreatedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := m.PutStudy(ctx, doc); err != nil {
		t.Fatalf("PutStudy: %v", err)
	}

	stored, ok := bucket.objects[Key(doc.StudyID)]
	if !ok {
		t.Fatalf("expected object %s, have %v", Key(doc.StudyID), bucket.objects)
	}
	var got StudyDocument
	if err := json.Unmarshal(stored, &got); err != nil {
		t.Fatalf("stored document is not JSON: %v (%q)", err, stored)
	}
	if got.Title != doc.Title || got.TableName != doc.TableName {
		t.Errorf("unexpected stored document: %+v", got)
	}

	if err := m.DeleteStudy(ctx, doc.StudyID); err != nil {
		t.Fatalf("DeleteStudy: %v", err)
	}
	if _, ok := bucket.objects[Key(doc.StudyID)]; ok {
		t.Errorf("expected object to be removed")
	}
}

func TestS3PutStudySurfacesFailure(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}, fail: true}
	m := newTestMirror(t, bucket)

	err := m.PutStudy(context.Background(), StudyDocument{StudyID: uuid.New()})
	if err == nil {
		t.Fatalf("expected error when the bucket rejects the write")
	}
}

func TestNewWithoutBucketIsNoop(t *testing.T) {
	m, err := New(context.Background(), appconfig.Mirror{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := m.(Noop); !ok {
		t.Errorf("expected Noop mirror, got %T", m)
	}
}

func TestKey(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	if got := Key(id); got != "studies/11111111-1111-1111-1111-111111111111.json" {
		t.Errorf("unexpected key %q", got)
	}
}
