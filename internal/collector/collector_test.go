package collector_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/collector"
	"codeberg.org/mutker/fleetinv/internal/errors"
	"codeberg.org/mutker/fleetinv/internal/inventory"
)

const (
	testUser      = "monitor"
	testPass      = "secret"
	testSessionID = "sess-e2e"
)

type staticCreds struct{}

func (staticCreds) Lookup(backend.Kind) (backend.Credentials, error) {
	return backend.Credentials{Username: testUser, Password: testPass}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fleetServer struct {
	*httptest.Server

	mu            sync.Mutex
	loginCalls    int
	detailCalls   map[string]int
	detailFails   map[string]int // fail the first n calls per path with a 503
	detailDelay   time.Duration
	inflight      int
	maxInflight   int
	detailPayload map[string]any // overrides per trailing path
}

// newFleetServer stubs a oneview console with three servers, two of which
// share a serial number.
func newFleetServer(t *testing.T) *fleetServer {
	t.Helper()

	fs := &fleetServer{
		detailCalls:   make(map[string]int),
		detailFails:   make(map[string]int),
		detailPayload: make(map[string]any),
	}

	members := []map[string]any{
		{"uuid": "uuid-0", "name": "srv-0", "serialNumber": "SN-1"},
		{"uuid": "uuid-1", "name": "srv-1", "serialNumber": "SN-1"},
		{"uuid": "uuid-2", "name": "srv-2", "serialNumber": "SN-2"},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/rest/login-sessions", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.loginCalls++
		fs.mu.Unlock()

		var body struct {
			UserName string `json:"userName"`
			Password string `json:"password"`
		}

		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserName != testUser || body.Password != testPass {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})

			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"sessionID": testSessionID})
	})

	mux.HandleFunc("/rest/server-hardware", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testSessionID, r.Header.Get("Auth"))
		writeJSON(w, http.StatusOK, map[string]any{
			"total":   len(members),
			"start":   0,
			"count":   len(members),
			"members": members,
		})
	})

	mux.HandleFunc("/rest/server-hardware/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/rest/server-hardware/")

		fs.mu.Lock()
		fs.detailCalls[rest]++
		calls := fs.detailCalls[rest]
		failures := fs.detailFails[rest]
		delay := fs.detailDelay
		fs.inflight++
		if fs.inflight > fs.maxInflight {
			fs.maxInflight = fs.inflight
		}
		fs.mu.Unlock()

		defer func() {
			fs.mu.Lock()
			fs.inflight--
			fs.mu.Unlock()
		}()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if calls <= failures {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "busy"})

			return
		}

		if payload, ok := fs.payloadFor(rest); ok {
			writeJSON(w, http.StatusOK, payload)

			return
		}

		if strings.HasSuffix(rest, "/utilization") {
			writeJSON(w, http.StatusOK, map[string]any{
				"metricList": []map[string]any{
					{"metricName": "AveragePower", "metricSamples": [][]any{{1700000000000, 182.5}}},
					{"metricName": "PeakPower", "metricSamples": [][]any{{1700000000000, 240.0}}},
				},
			})

			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"processorType":      "Intel Xeon Gold 6338",
			"processorSpeedMhz":  2600,
			"processorCoreCount": 32,
			"status":             "OK",
		})
	})

	fs.Server = httptest.NewTLSServer(mux)
	t.Cleanup(fs.Close)

	return fs
}

func (fs *fleetServer) payloadFor(rest string) (any, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	payload, ok := fs.detailPayload[rest]

	return payload, ok
}

func (fs *fleetServer) calls(rest string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return fs.detailCalls[rest]
}

func testRegistry() *backend.Registry {
	cfg := backend.Config{Timeout: 5 * time.Second, InsecureTLS: true}

	return backend.NewRegistry(backend.NewOneView(cfg), backend.NewOME(cfg))
}

func quickRetry() collector.RetryPolicy {
	return collector.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, Step: time.Millisecond}
}

func findTarget(t *testing.T, report *collector.Report, address string) collector.TargetReport {
	t.Helper()

	for _, tr := range report.Targets {
		if tr.Target.Address == address {
			return tr
		}
	}

	t.Fatalf("no report for target %s", address)

	return collector.TargetReport{}
}

func TestCollect(t *testing.T) {
	fs := newFleetServer(t)

	coll, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 2,
		FetchConcurrency:  2,
		Categories:        []string{"processors", "power", "uptime"},
		Retry:             quickRetry(),
	})
	require.NoError(t, err)

	report, err := coll.Collect(context.Background(), []inventory.Target{{Address: fs.URL}})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.RunID)
	assert.Positive(t, report.BatchEpoch)
	assert.False(t, report.FinishedAt.IsZero())

	require.Len(t, report.Targets, 1)
	tr := report.Targets[0]
	assert.Equal(t, backend.KindOneView, tr.Kind, "probe should classify the console")
	assert.Equal(t, 2, tr.EntityCount, "duplicate serial must collapse")
	assert.Equal(t, 1, tr.DuplicatesDropped)
	assert.False(t, tr.Truncated)
	assert.Empty(t, tr.Errors)
	assert.Contains(t, tr.SkippedCategories, "uptime", "this console has no uptime endpoint")
	assert.Equal(t, 2, tr.Categories["processors"].Records)
	assert.Equal(t, 2, tr.Categories["power"].Records)

	require.Len(t, report.Records["processors"], 2)
	require.Len(t, report.Records["power"], 2)
	assert.Empty(t, report.Records["uptime"])
	assert.False(t, report.HasErrors())

	// The first-seen entity wins the duplicate serial.
	ids := []string{
		report.Records["processors"][0].Field("DeviceId").Str(),
		report.Records["processors"][1].Field("DeviceId").Str(),
	}
	assert.ElementsMatch(t, []string{"uuid-0", "uuid-2"}, ids)

	for _, rec := range report.Records["processors"] {
		assert.Equal(t, inventory.StringValue("Intel Xeon Gold 6338"), rec.Field("CpuModel"))
		assert.Equal(t, inventory.IntValue(32), rec.Field("CoreCount"))
		assert.Equal(t, inventory.StringValue(fs.URL), rec.Field("ConsoleAddress"))
		assert.Equal(t, inventory.IntValue(report.BatchEpoch), rec.Field("CollectedEpoch"))
		assert.True(t, rec.Field("CpuBrand").IsAbsent(), "unmapped fields stay absent")
	}

	for _, rec := range report.Records["power"] {
		assert.Equal(t, inventory.FloatValue(182.5), rec.Field("AvgPowerWatts"))
		assert.Equal(t, inventory.FloatValue(240.0), rec.Field("PeakPowerWatts"))
		assert.True(t, rec.Field("PowerState").IsAbsent())
	}
}

func TestCollectDeclaredKindSkipsProbe(t *testing.T) {
	var oneViewLogins int

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/login-sessions", func(w http.ResponseWriter, _ *http.Request) {
		oneViewLogins++
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "nope"})
	})
	mux.HandleFunc("/api/SessionService/Sessions", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Auth-Token", "tok-1")
		writeJSON(w, http.StatusCreated, map[string]string{"Id": "1"})
	})
	mux.HandleFunc("/api/DeviceService/Devices", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"value": []map[string]any{
			{"Id": 7, "DeviceName": "srv-a", "DeviceServiceTag": "TAG-A"},
		}})
	})
	mux.HandleFunc("/api/DeviceService/Devices(7)/SystemUptime", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"Uptime_data": map[string]any{"systemUpTime": 86400}})
	})
	ts := httptest.NewTLSServer(mux)
	defer ts.Close()

	coll, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 1,
		FetchConcurrency:  1,
		Categories:        []string{"uptime"},
		Retry:             quickRetry(),
	})
	require.NoError(t, err)

	report, err := coll.Collect(context.Background(), []inventory.Target{{Address: ts.URL, Kind: "ome"}})
	require.NoError(t, err)

	tr := report.Targets[0]
	assert.Equal(t, backend.KindOME, tr.Kind)
	assert.Empty(t, tr.ProbeTrials, "declared kind bypasses probing")
	assert.Zero(t, oneViewLogins, "declared kind must not trial other dialects")
	assert.Empty(t, tr.Errors)

	require.Len(t, report.Records["uptime"], 1)
	assert.Equal(t, inventory.IntValue(86400), report.Records["uptime"][0].Field("UptimeSeconds"))
}

func TestCollectIsolatesFailingTarget(t *testing.T) {
	fs := newFleetServer(t)

	coll, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 2,
		FetchConcurrency:  2,
		Categories:        []string{"processors"},
		Retry:             collector.RetryPolicy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	// 127.0.0.1:1 refuses connections immediately.
	dead := "https://127.0.0.1:1"
	report, err := coll.Collect(context.Background(), []inventory.Target{
		{Address: fs.URL},
		{Address: dead},
	})
	require.NoError(t, err)
	require.Len(t, report.Targets, 2)

	bad := findTarget(t, report, dead)
	assert.Equal(t, backend.KindUnknown, bad.Kind)
	require.Len(t, bad.ProbeTrials, 2, "both dialects are trialed before giving up")
	require.NotEmpty(t, bad.Errors)
	assert.Equal(t, backend.ErrProbeInconclusive, errors.CodeOf(bad.Errors[0]))
	assert.Zero(t, bad.EntityCount)

	good := findTarget(t, report, fs.URL)
	assert.Empty(t, good.Errors, "a dead neighbor must not affect this target")
	assert.Equal(t, 2, good.EntityCount)
	assert.Len(t, report.Records["processors"], 2)
	assert.True(t, report.HasErrors())
}

func TestCollectRetriesTransientFailure(t *testing.T) {
	fs := newFleetServer(t)
	fs.detailFails["uuid-0"] = 1 // first call 503s, then recovers

	coll, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 1,
		FetchConcurrency:  1,
		Categories:        []string{"processors"},
		Retry:             quickRetry(),
	})
	require.NoError(t, err)

	report, err := coll.Collect(context.Background(), []inventory.Target{{Address: fs.URL}})
	require.NoError(t, err)

	tr := report.Targets[0]
	assert.Empty(t, tr.Errors, "a recovered fetch is not an error")
	assert.Equal(t, 2, tr.Categories["processors"].Records)
	assert.Equal(t, 2, fs.calls("uuid-0"), "one failure plus one successful retry")
	assert.Equal(t, 1, fs.calls("uuid-2"))
}

func TestCollectReportsExhaustedRetries(t *testing.T) {
	fs := newFleetServer(t)
	fs.detailFails["uuid-2"] = 100 // never recovers

	coll, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 1,
		FetchConcurrency:  1,
		Categories:        []string{"processors"},
		Retry:             collector.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond},
	})
	require.NoError(t, err)

	report, err := coll.Collect(context.Background(), []inventory.Target{{Address: fs.URL}})
	require.NoError(t, err)

	tr := report.Targets[0]
	require.Len(t, tr.Errors, 1)
	assert.Equal(t, collector.ErrDetailFetch, errors.CodeOf(tr.Errors[0]))
	assert.Equal(t, 2, fs.calls("uuid-2"), "attempts stop at the policy bound")

	stats := tr.Categories["processors"]
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Records, "the healthy entity still normalizes")
	assert.Equal(t, 1, stats.Failures)

	var statusErr *backend.StatusError
	require.True(t, errors.As(tr.Errors[0], &statusErr), "the report keeps the underlying cause")
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestCollectDropsInvalidPayload(t *testing.T) {
	fs := newFleetServer(t)
	fs.detailPayload["uuid-0"] = []any{1, 2, 3} // a JSON list where a document is expected

	coll, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 1,
		FetchConcurrency:  1,
		Categories:        []string{"processors"},
		Retry:             collector.RetryPolicy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	report, err := coll.Collect(context.Background(), []inventory.Target{{Address: fs.URL}})
	require.NoError(t, err)

	tr := report.Targets[0]
	require.Len(t, tr.Errors, 1)
	assert.Equal(t, inventory.ErrInvalidPayload, errors.CodeOf(tr.Errors[0]))

	stats := tr.Categories["processors"]
	assert.Equal(t, 2, stats.Succeeded, "the fetch itself completed for both entities")
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, 1, stats.Failures)
	assert.Len(t, report.Records["processors"], 1, "the malformed row is dropped, not emitted")
}

func TestCollectBoundsFetchConcurrency(t *testing.T) {
	fs := newFleetServer(t)
	fs.detailDelay = 25 * time.Millisecond

	coll, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 1,
		FetchConcurrency:  2,
		Categories:        []string{"processors", "power"},
		Retry:             collector.RetryPolicy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	_, err = coll.Collect(context.Background(), []inventory.Target{{Address: fs.URL}})
	require.NoError(t, err)

	fs.mu.Lock()
	maxInflight := fs.maxInflight
	fs.mu.Unlock()

	assert.LessOrEqual(t, maxInflight, 2, "detail fetches must respect the pool size")
	assert.Equal(t, 1, fs.calls("uuid-0"))
	assert.Equal(t, 1, fs.calls("uuid-0/utilization"))
}

func TestCollectHonorsCancellation(t *testing.T) {
	fs := newFleetServer(t)
	fs.detailDelay = 2 * time.Second

	coll, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 1,
		FetchConcurrency:  1,
		Categories:        []string{"processors"},
		Retry:             quickRetry(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	report, err := coll.Collect(ctx, []inventory.Target{{Address: fs.URL}})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 1500*time.Millisecond, "cancellation must not wait out the fleet")
	assert.True(t, report.HasErrors(), "interrupted fetches are reported")
}

func TestCollectNoTargets(t *testing.T) {
	coll, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 1,
		FetchConcurrency:  1,
		Retry:             quickRetry(),
	})
	require.NoError(t, err)

	_, err = coll.Collect(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrNoTargets, errors.CodeOf(err))
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 1,
		FetchConcurrency:  1,
		Categories:        []string{"bogus"},
		Retry:             quickRetry(),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrUnknownCategory, errors.CodeOf(err))

	_, err = collector.New(testRegistry(), staticCreds{}, collector.Config{
		TargetConcurrency: 0,
		FetchConcurrency:  1,
		Retry:             quickRetry(),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
}
