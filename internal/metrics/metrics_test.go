package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/itick-stream/internal/connection"
	"github.com/rickgao/itick-stream/internal/protocol"
	"github.com/rickgao/itick-stream/internal/queue"
)

func TestCollector_Observer(t *testing.T) {
	c := NewCollector("XAUUSD")

	c.DialStarted()
	c.DialStarted()
	c.Opened()
	c.StatusChanged(connection.StatusSubscribed)
	c.AttemptsChanged(3)
	c.MessageReceived(10)
	c.MessageReceived(22)
	c.Disconnected()
	c.ReconnectScheduled(connection.ReconnectAttempt{Attempt: 1})
	c.SendFailed(protocol.ActionAuth)
	c.LimitReached()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"dials", testutil.ToFloat64(c.dials), 2},
		{"opens", testutil.ToFloat64(c.opens), 1},
		{"closes", testutil.ToFloat64(c.closes), 1},
		{"reconnects", testutil.ToFloat64(c.reconnects), 1},
		{"limit", testutil.ToFloat64(c.limitReached), 1},
		{"status", testutil.ToFloat64(c.status), float64(connection.StatusSubscribed)},
		{"attempts", testutil.ToFloat64(c.attempts), 3},
		{"messages", testutil.ToFloat64(c.messages), 2},
		{"bytes", testutil.ToFloat64(c.messageBytes), 32},
		{"auth failures", testutil.ToFloat64(c.sendFailures.WithLabelValues("auth")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCollector_Snapshots(t *testing.T) {
	c := NewCollector("XAUUSD")

	c.SnapshotFetched(true)
	c.SnapshotFetched(true)
	c.SnapshotFetched(false)

	if got := testutil.ToFloat64(c.snapshotsFetched); got != 2 {
		t.Errorf("snapshots = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.snapshotsFailed); got != 1 {
		t.Errorf("snapshot failures = %v, want 1", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("XAUUSD")
	c.Opened()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `itick_session_opens_total{symbol="XAUUSD"} 1`) {
		t.Errorf("opens counter missing from exposition:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("go runtime collector missing")
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("XAUUSD")
	b := NewCollector("XAGUSD")

	a.Opened()

	if got := testutil.ToFloat64(b.opens); got != 0 {
		t.Errorf("second collector opens = %v, want 0", got)
	}
	if n, err := testutil.GatherAndCount(a.Registry(), "itick_session_opens_total"); err != nil || n != 1 {
		t.Errorf("GatherAndCount = %d, %v; want 1, nil", n, err)
	}
}

func TestCollector_WatchQueue(t *testing.T) {
	q := queue.New[int](4)
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	q.Pop()

	c := NewCollector("XAUUSD")
	c.WatchQueue(q.Stats)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`itick_session_event_queue_depth{symbol="XAUUSD"} 4`,
		`itick_session_events_total{symbol="XAUUSD"} 1`,
		`itick_session_event_queue_capacity{symbol="XAUUSD"} 16`,
		`itick_session_event_queue_resizes_total{symbol="XAUUSD"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in exposition:\n%s", want, body)
		}
	}

	// Values are read at scrape time.
	q.Pop()
	if n, err := testutil.GatherAndCount(c.Registry(), "itick_session_event_queue_depth"); err != nil || n != 1 {
		t.Errorf("GatherAndCount = %d, %v; want 1, nil", n, err)
	}
	if got := q.Stats().Len; got != 3 {
		t.Errorf("Len = %d, want 3", got)
	}
}
