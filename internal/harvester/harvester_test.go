package harvester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rng-mesh/pkg/rngauth"
)

type fakeSource struct {
	name    string
	period  time.Duration
	samples [][]byte
	idx     int32
}

func (f *fakeSource) Name() string          { return f.name }
func (f *fakeSource) Period() time.Duration { return f.period }
func (f *fakeSource) Sample(ctx context.Context) ([]byte, error) {
	i := atomic.AddInt32(&f.idx, 1) - 1
	if int(i) >= len(f.samples) {
		return f.samples[len(f.samples)-1], nil
	}
	return f.samples[i], nil
}

func TestResolveSkipsUnknownSourceNames(t *testing.T) {
	reg := Registry{
		"known": func() Source { return &fakeSource{name: "known", period: time.Second, samples: [][]byte{[]byte("x")}} },
	}
	sources := Resolve(reg, []string{"known", "bogus"})
	if len(sources) != 1 {
		t.Fatalf("expected exactly 1 resolved source, got %d", len(sources))
	}
	if sources[0].Name() != "known" {
		t.Errorf("expected the known source, got %s", sources[0].Name())
	}
}

func TestSupervisorPostsDigestForEachSample(t *testing.T) {
	var received int32
	key, _ := rngauth.LoadKey("test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	src := &fakeSource{name: "fake", period: 5 * time.Millisecond, samples: [][]byte{[]byte("sample-1")}}
	sup := NewSupervisor(srv.URL, key, []Source{src})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = sup.Run(ctx)

	if atomic.LoadInt32(&received) < 2 {
		t.Errorf("expected at least 2 digests posted over the test window, got %d", received)
	}
}

func TestSupervisorSkipsEmptySamplesWithoutPosting(t *testing.T) {
	var received int32
	key, _ := rngauth.LoadKey("test-key")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	src := &fakeSource{name: "empty", period: 5 * time.Millisecond, samples: [][]byte{nil}}
	sup := NewSupervisor(srv.URL, key, []Source{src})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = sup.Run(ctx)

	if atomic.LoadInt32(&received) != 0 {
		t.Errorf("expected no posts for an always-empty source, got %d", received)
	}
}
