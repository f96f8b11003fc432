package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestHTTPSinkInsert(t *testing.T) {
	type captured struct {
		path   string
		apikey string
		body   []byte
	}
	var (
		mu   sync.Mutex
		got  []captured
		done = make(chan struct{}, 1)
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{path: r.URL.Path, apikey: r.Header.Get("apikey"), body: body})
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		done <- struct{}{}
	}))
	defer server.Close()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	sink := NewHTTPSink(server.URL, "secret-key", log)

	rec := VerifyRecord{
		ID:      NewRecordID(),
		Payer:   "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		IsValid: true,
	}
	sink.Insert(context.Background(), TableVerify, rec)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("insert never reached the server")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, "/rest/v1/verify_requests", got[0].path)
	require.Equal(t, "secret-key", got[0].apikey)

	var row VerifyRecord
	require.NoError(t, json.Unmarshal(got[0].body, &row))
	require.Equal(t, rec.ID, row.ID)
	require.True(t, row.IsValid)
}

func TestNopSink(t *testing.T) {
	// Must be safe with nothing configured.
	NopSink{}.Insert(context.Background(), TableSettle, SettleRecord{})
}
