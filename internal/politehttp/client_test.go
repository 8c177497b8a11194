package politehttp

import (
	"context"
	"digimon-scraper/internal/components/chrono"
	"digimon-scraper/internal/components/telemetry"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{
		PoliteRetryDelay: time.Minute,
		RetryJitterMin:   5 * time.Second,
		RetryJitterMax:   5 * time.Second,
		SuccessDelayMin:  2 * time.Minute,
		SuccessDelayMax:  2 * time.Minute,
		Timeout:          5 * time.Second,
		UserAgent:        "digimon-scraper-test",
	}
}

// scriptedServer answers with the given statuses in order, then 200 forever.
func scriptedServer(t *testing.T, statuses []int, header http.Header) (*httptest.Server, *int64) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		for k, vals := range header {
			for _, v := range vals {
				w.Header().Add(k, v)
			}
		}
		if int(n) <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestClient(t *testing.T, baseUrl string) (*Client, *chrono.Recorder, *telemetry.MemoryAPI) {
	clock := chrono.NewRecorder(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	tel := telemetry.NewMemoryAPI()
	client, err := NewClient(baseUrl, testPolicy(), clock, tel)
	require.Nil(t, err)
	return client, clock, tel
}

func TestFetchRetriesTooManyRequests(t *testing.T) {
	tooMany := http.StatusTooManyRequests
	server, calls := scriptedServer(t, []int{tooMany, tooMany, tooMany}, nil)
	client, clock, _ := newTestClient(t, server.URL)

	res, err := client.Fetch(context.Background(), server.URL+"/Agumon", nil, Options{RetryCount: 5})
	require.Nil(t, err)
	require.Equal(t, http.StatusOK, res.Status)
	require.Equal(t, "<html>ok</html>", string(res.Body))
	require.Equal(t, int64(4), atomic.LoadInt64(calls))

	sleeps := clock.Sleeps()
	require.GreaterOrEqual(t, len(sleeps), 2)
	require.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, sleeps)
}

func TestFetchPolite(t *testing.T) {
	server, _ := scriptedServer(t, []int{http.StatusServiceUnavailable}, nil)
	client, clock, _ := newTestClient(t, server.URL)

	res, err := client.Fetch(context.Background(), server.URL+"/Agumon", nil, Options{Polite: true, RetryCount: 3})
	require.Nil(t, err)
	require.Equal(t, http.StatusOK, res.Status)
	require.Equal(t, []time.Duration{time.Minute, 2 * time.Minute}, clock.Sleeps())
}

func TestFetchRetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "120")
	server, _ := scriptedServer(t, []int{http.StatusTooManyRequests}, header)
	client, clock, _ := newTestClient(t, server.URL)

	_, err := client.Fetch(context.Background(), server.URL+"/Agumon", nil, Options{RetryCount: 3})
	require.Nil(t, err)
	require.Equal(t, []time.Duration{2 * time.Minute}, clock.Sleeps())
}

func TestFetchNotFound(t *testing.T) {
	server, calls := scriptedServer(t, []int{http.StatusNotFound}, nil)
	client, clock, tel := newTestClient(t, server.URL)

	res, err := client.Fetch(context.Background(), server.URL+"/Missingmon", nil, Options{RetryCount: 5})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, http.StatusNotFound, res.Status)
	require.Nil(t, res.Body)
	require.Equal(t, int64(1), atomic.LoadInt64(calls))
	require.Empty(t, clock.Sleeps())
	require.Len(t, tel.Find("warning", report_client_fetch), 1)
}

func TestFetchRetriesExhausted(t *testing.T) {
	server, calls := scriptedServer(t, []int{500, 502, 503, 504}, nil)
	client, clock, _ := newTestClient(t, server.URL)

	_, err := client.Fetch(context.Background(), server.URL+"/Agumon", nil, Options{RetryCount: 3})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.Equal(t, int64(3), atomic.LoadInt64(calls))
	require.Len(t, clock.Sleeps(), 2)
}

func TestFetchUnexpectedStatus(t *testing.T) {
	server, calls := scriptedServer(t, []int{http.StatusForbidden}, nil)
	client, clock, _ := newTestClient(t, server.URL)

	_, err := client.Fetch(context.Background(), server.URL+"/Agumon", nil, Options{RetryCount: 3})
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.Equal(t, int64(1), atomic.LoadInt64(calls))
	require.Empty(t, clock.Sleeps())
}

func TestFetchSendsHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()
	client, _, _ := newTestClient(t, server.URL)

	res, err := client.Fetch(
		context.Background(),
		server.URL+"/Agumon",
		map[string]string{"If-None-Match": `"v1"`},
		Options{RetryCount: 1},
	)
	require.Nil(t, err)
	require.Equal(t, http.StatusNotModified, res.Status)
	require.Equal(t, `"v1"`, got.Get("If-None-Match"))
	require.Equal(t, "digimon-scraper-test", got.Get("User-Agent"))
}
