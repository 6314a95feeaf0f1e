package testsupport

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"assetflow/internal/objectstore"
)

// FakeStorage is an in-memory objectstore.Backend that records calls.
type FakeStorage struct {
	mu        sync.Mutex
	next      int
	Begun     []string
	Finished  map[string][]objectstore.CompletedPart
	Aborted   []string
	FinishErr error
	BeginErr  error

	finishCalls int
}

var _ objectstore.Backend = (*FakeStorage)(nil)

// NewFakeStorage returns an empty fake backend.
func NewFakeStorage() *FakeStorage {
	return &FakeStorage{Finished: map[string][]objectstore.CompletedPart{}}
}

func (f *FakeStorage) Begin(_ context.Context, key, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BeginErr != nil {
		return "", f.BeginErr
	}
	f.next++
	f.Begun = append(f.Begun, key)
	return fmt.Sprintf("upload-%d", f.next), nil
}

func (f *FakeStorage) PartURL(_ context.Context, key, uploadID string, partNumber int, ttl time.Duration) (*url.URL, error) {
	q := url.Values{}
	q.Set("uploadId", uploadID)
	q.Set("partNumber", strconv.Itoa(partNumber))
	q.Set("X-Amz-Expires", strconv.Itoa(int(ttl.Seconds())))
	return &url.URL{Scheme: "http", Host: "storage.test", Path: "/" + key, RawQuery: q.Encode()}, nil
}

func (f *FakeStorage) Finish(_ context.Context, _ string, uploadID string, parts []objectstore.CompletedPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishCalls++
	if f.FinishErr != nil {
		return f.FinishErr
	}
	if _, done := f.Finished[uploadID]; done {
		return fmt.Errorf("upload %s was already completed", uploadID)
	}
	f.Finished[uploadID] = append([]objectstore.CompletedPart(nil), parts...)
	return nil
}

func (f *FakeStorage) Abort(_ context.Context, _ string, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Aborted = append(f.Aborted, uploadID)
	return nil
}

// FinishCount reports how many uploads were assembled.
func (f *FakeStorage) FinishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Finished)
}

// FinishCalls reports how many times Finish was invoked, including failures.
func (f *FakeStorage) FinishCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finishCalls
}

// AbortedUploads returns a copy of the aborted upload ids.
func (f *FakeStorage) AbortedUploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Aborted...)
}
