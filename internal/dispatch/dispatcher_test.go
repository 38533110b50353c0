package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
)

// mockReceiver hands out queued messages and records requested timeouts.
type mockReceiver struct {
	mu       sync.Mutex
	queue    []mqtt.Message
	timeouts []time.Duration
}

func (r *mockReceiver) Receive(timeout time.Duration) (mqtt.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts = append(r.timeouts, timeout)
	if len(r.queue) == 0 {
		return mqtt.Message{}, false
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, true
}

func msg(topic, payload string) mqtt.Message {
	return mqtt.Message{Topic: topic, Payload: []byte(payload)}
}

type mockLogger struct {
	debugs, warns, errors int
}

func (l *mockLogger) Debug(string, ...any) { l.debugs++ }
func (l *mockLogger) Warn(string, ...any)  { l.warns++ }
func (l *mockLogger) Error(string, ...any) { l.errors++ }

const actuatorTopic = "greenhouse/feeds/botao-on-slash-off"

func TestNew_Validation(t *testing.T) {
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topics  []Topic
		wantErr error
	}{
		{
			name:   "valid",
			topics: []Topic{{Name: actuatorTopic, QoS: 1, Handler: noop}},
		},
		{
			name:    "empty name",
			topics:  []Topic{{Name: "", Handler: noop}},
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "wildcard",
			topics:  []Topic{{Name: "greenhouse/feeds/#", Handler: noop}},
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "nil handler",
			topics:  []Topic{{Name: actuatorTopic}},
			wantErr: ErrInvalidTopic,
		},
		{
			name: "duplicate",
			topics: []Topic{
				{Name: actuatorTopic, Handler: noop},
				{Name: actuatorTopic, Handler: noop},
			},
			wantErr: ErrDuplicateTopic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(&mockReceiver{}, tt.topics...)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				if len(d.Topics()) != len(tt.topics) {
					t.Errorf("Topics() = %d, want %d", len(d.Topics()), len(tt.topics))
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcessPending_ArrivalOrder(t *testing.T) {
	receiver := &mockReceiver{queue: []mqtt.Message{
		msg(actuatorTopic, "ON"),
		msg(actuatorTopic, "OFF"),
		msg(actuatorTopic, "ON"),
	}}

	var seen []string
	d, err := New(receiver, Topic{Name: actuatorTopic, QoS: 1, Handler: func(_ string, payload []byte) error {
		seen = append(seen, string(payload))
		return nil
	}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if n := d.ProcessPending(0); n != 3 {
		t.Errorf("ProcessPending() = %d, want 3", n)
	}

	want := []string{"ON", "OFF", "ON"}
	if len(seen) != len(want) {
		t.Fatalf("handled %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("handled[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestProcessPending_UnboundTopicDropped(t *testing.T) {
	receiver := &mockReceiver{queue: []mqtt.Message{
		msg("greenhouse/feeds/other", "x"),
		msg(actuatorTopic, "ON"),
	}}
	logger := &mockLogger{}

	calls := 0
	d, _ := New(receiver, Topic{Name: actuatorTopic, Handler: func(string, []byte) error {
		calls++
		return nil
	}})
	d.SetLogger(logger)

	if n := d.ProcessPending(0); n != 1 {
		t.Errorf("ProcessPending() = %d, want 1", n)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
	if logger.debugs != 1 {
		t.Errorf("debug logs = %d, want 1", logger.debugs)
	}
}

func TestProcessPending_HandlerFailuresDoNotStopDrain(t *testing.T) {
	receiver := &mockReceiver{queue: []mqtt.Message{
		msg(actuatorTopic, "error"),
		msg(actuatorTopic, "panic"),
		msg(actuatorTopic, "ok"),
	}}
	logger := &mockLogger{}

	var handled []string
	d, _ := New(receiver, Topic{Name: actuatorTopic, Handler: func(_ string, payload []byte) error {
		handled = append(handled, string(payload))
		switch string(payload) {
		case "error":
			return errors.New("bad payload")
		case "panic":
			panic("boom")
		}
		return nil
	}})
	d.SetLogger(logger)

	if n := d.ProcessPending(0); n != 3 {
		t.Errorf("ProcessPending() = %d, want 3", n)
	}
	if len(handled) != 3 {
		t.Errorf("handled = %v, want all three", handled)
	}
	if logger.warns != 1 || logger.errors != 1 {
		t.Errorf("warns = %d errors = %d, want 1 and 1", logger.warns, logger.errors)
	}
}

func TestProcessPending_CountsEveryHandledMessage(t *testing.T) {
	tests := []struct {
		name    string
		handler Handler
	}{
		{"returns nil", func(string, []byte) error { return nil }},
		{"returns error", func(string, []byte) error { return errors.New("bad payload") }},
		{"panics", func(string, []byte) error { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receiver := &mockReceiver{queue: []mqtt.Message{msg(actuatorTopic, "ON")}}
			d, _ := New(receiver, Topic{Name: actuatorTopic, Handler: tt.handler})

			if n := d.ProcessPending(0); n != 1 {
				t.Errorf("ProcessPending() = %d, want 1", n)
			}
		})
	}
}

func TestProcessPending_WaitsForBudget(t *testing.T) {
	receiver := &mockReceiver{}
	d, _ := New(receiver, Topic{Name: actuatorTopic, Handler: func(string, []byte) error { return nil }})

	if n := d.ProcessPending(50 * time.Millisecond); n != 0 {
		t.Errorf("ProcessPending() = %d, want 0", n)
	}

	if len(receiver.timeouts) != 1 {
		t.Fatalf("Receive calls = %d, want 1", len(receiver.timeouts))
	}
	if got := receiver.timeouts[0]; got <= 0 || got > 50*time.Millisecond {
		t.Errorf("Receive timeout = %v, want remaining budget up to 50ms", got)
	}
}

func TestProcessPending_BudgetShrinks(t *testing.T) {
	receiver := &mockReceiver{queue: []mqtt.Message{msg(actuatorTopic, "ON")}}
	d, _ := New(receiver, Topic{Name: actuatorTopic, Handler: func(string, []byte) error { return nil }})

	// Each call to now advances the clock by 3 seconds
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time {
		now := current
		current = current.Add(3 * time.Second)
		return now
	}

	d.ProcessPending(10 * time.Second)

	if len(receiver.timeouts) < 2 {
		t.Fatalf("Receive calls = %d, want at least 2", len(receiver.timeouts))
	}
	if receiver.timeouts[1] >= receiver.timeouts[0] {
		t.Errorf("second timeout %v not smaller than first %v", receiver.timeouts[1], receiver.timeouts[0])
	}
}

func TestProcessPending_StopsWhenBudgetSpent(t *testing.T) {
	queue := make([]mqtt.Message, 100)
	for i := range queue {
		queue[i] = msg(actuatorTopic, "ON")
	}
	receiver := &mockReceiver{queue: queue}
	d, _ := New(receiver, Topic{Name: actuatorTopic, Handler: func(string, []byte) error { return nil }})

	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time {
		now := current
		current = current.Add(time.Second)
		return now
	}

	n := d.ProcessPending(5 * time.Second)
	if n >= 100 {
		t.Errorf("ProcessPending() = %d, want drain bounded by budget", n)
	}
}
