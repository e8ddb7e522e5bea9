package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
	"github.com/flexprice/collections/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankFileKey(t *testing.T) {
	key := BankFileKey(types.BankBatchDirectionOutbound, types.MustParseDate("2026-03-10"), "DD_0001_20260310_001.txt")
	assert.Equal(t, "bank-files/OUTBOUND/2026-03-10/DD_0001_20260310_001.txt", key)

	key = BankFileKey(types.BankBatchDirectionInbound, types.MustParseDate("2026-03-11"), "../../etc/resp.txt")
	assert.Equal(t, "bank-files/INBOUND/2026-03-11/resp.txt", key)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))

	data := []byte("H|DDPIPE\n")
	require.NoError(t, store.Put(ctx, "a/b.txt", data, "text/plain"))
	data[0] = 'X'

	got, err := store.Get(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "H|DDPIPE\n", string(got))
	assert.Equal(t, []string{"a/b.txt"}, store.Keys())
}

// fakeS3 serves path style PUT and GET object requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Store_PutGet(t *testing.T) {
	backend := &fakeS3{objects: map[string][]byte{}}
	server := httptest.NewServer(backend)
	defer server.Close()

	ctx := context.Background()
	store, err := NewS3Store(ctx, config.S3Config{
		Enabled:         true,
		Region:          "us-east-1",
		Bucket:          "bank-archive",
		Endpoint:        server.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	}, logger.NewNopLogger())
	require.NoError(t, err)

	key := BankFileKey(types.BankBatchDirectionOutbound, types.MustParseDate("2026-03-10"), "DD_0001_20260310_001.txt")
	require.NoError(t, store.Put(ctx, key, []byte("H|DDPIPE|1\n"), "text/plain"))

	backend.mu.Lock()
	_, stored := backend.objects["/bank-archive/"+key]
	backend.mu.Unlock()
	assert.True(t, stored)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "H|DDPIPE"))

	_, err = store.Get(ctx, "bank-files/OUTBOUND/none.txt")
	require.Error(t, err)
	assert.True(t, ierr.IsNotFound(err))
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), config.S3Config{Region: "us-east-1"}, logger.NewNopLogger())
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
