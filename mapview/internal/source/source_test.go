package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

func noopValidator(string) error { return nil }

const rowsJSON = `[
 {"plot_id": "1", "plot_name": "Lot 1", "svg_code": "<rect fill=\"red\"/>"},
 {"plot_id": 2, "plot_name": "Lot 2", "svg_code": "<rect/>"}
]`

func TestDecode_Rows(t *testing.T) {
	// WHAT: A JSON row array decodes in order; numeric ids are stringified.
	// WHY: Sheet proxies emit ids as numbers when the column is numeric.
	plots, err := Decode([]byte(rowsJSON))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plots) != 2 {
		t.Fatalf("rows: got %d, want 2", len(plots))
	}
	if plots[1].ID != "2" || plots[0].Name != "Lot 1" {
		t.Errorf("got %+v", plots)
	}
}

func TestDecode_Values(t *testing.T) {
	// WHAT: A values payload maps columns by header name.
	// WHY: Raw sheet exports carry a header row in arbitrary column order.
	body := `{"values": [["svg_code","plot_id","plot_name"],["<rect/>","A","Lot A"],["<rect/>","B"]]}`
	plots, err := Decode([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(plots) != 2 {
		t.Fatalf("rows: got %d, want 2", len(plots))
	}
	if plots[0].ID != "A" || plots[0].Name != "Lot A" || plots[0].Fragment != "<rect/>" {
		t.Errorf("row 0: got %+v", plots[0])
	}
	if plots[1].Name != "" {
		t.Errorf("short row name: got %q", plots[1].Name)
	}
}

func TestDecode_ValuesWithoutHeader(t *testing.T) {
	// WHAT: Without a recognised header, columns are positional.
	// WHY: Some exports strip the header row.
	plots, err := Decode([]byte(`{"values": [["1","one","<rect/>"]]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if plots[0].ID != "1" || plots[0].Name != "one" {
		t.Errorf("got %+v", plots[0])
	}
}

func TestDecode_Malformed(t *testing.T) {
	// WHAT: Empty, non-JSON and empty-array payloads are ErrMalformed.
	// WHY: The poll loop treats malformed data as a failed fetch, not as "no plots".
	for _, body := range []string{"", "   ", "<html>", "[]", `{"values": []}`, `[{"plot_id":`} {
		if _, err := Decode([]byte(body)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q): got %v, want ErrMalformed", body, err)
		}
	}
}

func TestHTTPSource_CacheBustAndETag(t *testing.T) {
	// WHAT: Requests carry a timestamp parameter and replay the ETag; 304 is ErrNotModified.
	// WHY: Proxies cache aggressively and unchanged sheets should cost nothing.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("timestamp") != "1700000000000" {
			t.Errorf("timestamp: got %q", r.URL.Query().Get("timestamp"))
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(rowsJSON))
	}))
	defer srv.Close()

	s := NewHTTP(HTTPConfig{
		URL:          srv.URL + "/exec?sheet=plots",
		URLValidator: noopValidator,
		Now:          func() time.Time { return time.UnixMilli(1700000000000) },
	})
	plots, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(plots) != 2 {
		t.Fatalf("rows: got %d", len(plots))
	}
	// Uncommitted: the ETag is not replayed yet.
	s.Rollback()
	if _, err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch after rollback: got %v, want rows", err)
	}
	s.Commit()
	if _, err := s.Fetch(context.Background()); !errors.Is(err, ErrNotModified) {
		t.Fatalf("fetch after commit: got %v, want ErrNotModified", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls: got %d, want 3", calls.Load())
	}
}

func TestWithRetry_ForwardsCommit(t *testing.T) {
	// WHAT: The retry wrapper passes Commit through to the HTTP source.
	// WHY: Wrapping must not disable conditional requests.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(rowsJSON))
	}))
	defer srv.Close()

	src := WithRetry(NewHTTP(HTTPConfig{URL: srv.URL, URLValidator: noopValidator}), 2, time.Millisecond, nil)
	c, ok := src.(Committer)
	if !ok {
		t.Fatal("retry wrapper is not a Committer")
	}
	if _, err := src.Fetch(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	c.Commit()
	if _, err := src.Fetch(context.Background()); !errors.Is(err, ErrNotModified) {
		t.Fatalf("second fetch: got %v, want ErrNotModified", err)
	}
}

func TestHTTPSource_StatusError(t *testing.T) {
	// WHAT: A non-2xx status is ErrTransport.
	// WHY: Failed fetches must not be mistaken for empty data.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTP(HTTPConfig{URL: srv.URL, URLValidator: noopValidator})
	if _, err := s.Fetch(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("got %v, want ErrTransport", err)
	}
}

func TestHTTPSource_MaxBytes(t *testing.T) {
	// WHAT: Bodies larger than MaxBytes are rejected.
	// WHY: A misbehaving endpoint must not exhaust memory.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat(" ", 2048) + rowsJSON))
	}))
	defer srv.Close()

	s := NewHTTP(HTTPConfig{URL: srv.URL, MaxBytes: 1024, URLValidator: noopValidator, NoCacheBust: true})
	if _, err := s.Fetch(context.Background()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("got %v, want ErrMalformed", err)
	}
}

func TestHTTPSource_BlocksPrivateByDefault(t *testing.T) {
	// WHAT: Loopback targets are refused unless AllowPrivate is set.
	// WHY: The source URL comes from configuration that may be user supplied.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rowsJSON))
	}))
	defer srv.Close()

	if _, err := NewHTTP(HTTPConfig{URL: srv.URL}).Fetch(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("default: got %v, want ErrTransport", err)
	}
	if _, err := NewHTTP(HTTPConfig{URL: srv.URL, AllowPrivate: true}).Fetch(context.Background()); err != nil {
		t.Fatalf("allow private: %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	// WHAT: Schemes and private literals are rejected.
	// WHY: Guards the fetcher against SSRF.
	if err := ValidateURL("file:///etc/passwd"); !errors.Is(err, ErrUnsafeScheme) {
		t.Errorf("file scheme: got %v", err)
	}
	if err := ValidateURL("http://10.0.0.1/x"); !errors.Is(err, ErrPrivateTarget) {
		t.Errorf("private ip: got %v", err)
	}
	if err := ValidateURL("https://93.184.216.34/x"); err != nil {
		t.Errorf("public ip: got %v", err)
	}
}

func TestFileSource_Fetch(t *testing.T) {
	// WHAT: A file source decodes the same payloads as HTTP.
	// WHY: Local datasets drive demos and tests without a network.
	path := filepath.Join(t.TempDir(), "plots.json")
	if err := os.WriteFile(path, []byte(rowsJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	plots, err := NewFile(path, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(plots) != 2 {
		t.Errorf("rows: got %d", len(plots))
	}

	if _, err := NewFile(filepath.Join(t.TempDir(), "missing.json"), nil).Fetch(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("missing file: got %v, want ErrTransport", err)
	}
}

func TestFileSource_Watch(t *testing.T) {
	// WHAT: Writing the file triggers onChange.
	// WHY: Local edits to the dataset refresh the map without waiting for the ticker.
	dir := t.TempDir()
	path := filepath.Join(dir, "plots.json")
	if err := os.WriteFile(path, []byte(rowsJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := NewFile(path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() { done <- fs.Watch(ctx, func() { changed <- struct{}{} }) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(rowsJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch: %v", err)
	}
}

func TestWithRetry_TransportOnly(t *testing.T) {
	// WHAT: Transport errors are retried; malformed payloads are not.
	// WHY: A bad payload will not fix itself within one poll.
	var calls atomic.Int32
	flaky := Func(func(context.Context) ([]plot.Plot, error) {
		if calls.Add(1) < 3 {
			return nil, ErrTransport
		}
		return []plot.Plot{{ID: "1"}}, nil
	})
	plots, err := WithRetry(flaky, 2, time.Millisecond, nil).Fetch(context.Background())
	if err != nil || len(plots) != 1 {
		t.Fatalf("retry: %v %v", plots, err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls: got %d, want 3", calls.Load())
	}

	calls.Store(0)
	bad := Func(func(context.Context) ([]plot.Plot, error) {
		calls.Add(1)
		return nil, ErrMalformed
	})
	if _, err := WithRetry(bad, 3, time.Millisecond, nil).Fetch(context.Background()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("malformed: got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("malformed calls: got %d, want 1", calls.Load())
	}
}
