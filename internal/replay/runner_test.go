package replay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeService counts datagrams on a UDP socket and serves them as status.
type fakeService struct {
	mu       sync.Mutex
	received uint64
	started  bool
	conn     *net.UDPConn
	api      *httptest.Server
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{conn: listenUDP(t)}
	go func() {
		buf := make([]byte, 2048)
		for {
			if _, _, err := f.conn.ReadFromUDP(buf); err != nil {
				return
			}
			f.mu.Lock()
			f.received++
			f.mu.Unlock()
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		n := f.received
		f.mu.Unlock()
		write(w, map[string]any{"success": true, "data": Status{
			Ingestion: "running", Received: n, Published: n, Persisted: n,
		}})
	})
	mux.HandleFunc("POST /api/ingest/start", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.started = true
		f.mu.Unlock()
		write(w, map[string]any{"success": true, "data": map[string]any{"state": "running"}})
	})
	f.api = httptest.NewServer(mux)
	t.Cleanup(f.api.Close)
	return f
}

func write(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeService) config() *Config {
	return &Config{
		Target:    f.conn.LocalAddr().String(),
		APIURL:    f.api.URL,
		Matches:   2,
		Exchanges: 3,
		Seed:      1,
		Timeout:   time.Second,
		Settle:    2 * time.Second,
		Start:     true,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a service that receives every datagram", t, func() {
		f := newFakeService(t)
		cfg := f.config()

		Convey("When replaying generated matches", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then counters should verify and ingestion should be started", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, len(NewGenerator(1, 3).Matches(2)))
				So(stats.Sent, ShouldEqual, stats.Generated)
				f.mu.Lock()
				So(f.started, ShouldBeTrue)
				f.mu.Unlock()
			})
		})

		Convey("When replaying a capture file", func() {
			path := filepath.Join(t.TempDir(), "capture.txt")
			So(os.WriteFile(path, []byte("# header\nhl1;85;\r\n\npt1;3;\nzz9;1\n"), 0o600), ShouldBeNil)
			cfg.Input = path

			stats, err := Run(context.Background(), cfg)

			Convey("Then only the datagram lines should be sent", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 3)
				So(stats.Sent, ShouldEqual, 3)
			})
		})

		Convey("When the input file is missing", func() {
			cfg.Input = filepath.Join(t.TempDir(), "missing.txt")
			_, err := Run(context.Background(), cfg)

			Convey("Then the run should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "open input")
			})
		})
	})

	Convey("Given an unreachable API", t, func() {
		cfg := &Config{Target: "127.0.0.1:9", APIURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}
		_, err := Run(context.Background(), cfg)

		Convey("Then the health check should fail the run", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})

	Convey("Given no API", t, func() {
		conn := listenUDP(t)
		cfg := &Config{Target: conn.LocalAddr().String(), Matches: 1, Exchanges: 2, Seed: 3}
		stats, err := Run(context.Background(), cfg)

		Convey("Then datagrams should be sent without verification", func() {
			So(err, ShouldBeNil)
			So(stats.Sent, ShouldEqual, stats.Generated)
			So(stats.Duration, ShouldBeGreaterThan, 0)
		})
	})
}
