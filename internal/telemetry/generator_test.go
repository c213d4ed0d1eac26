package telemetry

import (
	"math/rand"
	"strings"
	"testing"
	"time"
)

// seededRand returns a deterministic random source.
func seededRand() *rand.Rand { return rand.New(rand.NewSource(1)) }

func TestSynthesizeMemoryTiers(t *testing.T) {
	cases := []struct {
		mem  float64
		want string
	}{
		{1300, "[FATAL] OOMKiller: Process 'app_worker' signaled with SIGKILL. Heap exhausted at 1300MB."},
		{900, "[ERROR] java.lang.OutOfMemoryError: GC overhead limit exceeded. Attempting forced collection."},
		{300.4, "[WARN] Memory consumption leak detected in BufferPool. Current: 300MB."},
	}
	for _, c := range cases {
		st := NewState(DefaultBaseline)
		st.ActiveFaults = []FaultKind{FaultMemoryLeak}
		st.MemoryMB = c.mem
		msg, ok := Synthesize(st, seededRand())
		if !ok {
			t.Fatalf("expected a line for memory %.0f", c.mem)
		}
		if msg != c.want {
			t.Errorf("memory %.0f: expected %q, got %q", c.mem, c.want, msg)
		}
	}
}

func TestSynthesizeDiskTiers(t *testing.T) {
	cases := []struct {
		disk   float64
		prefix string
	}{
		{96, "[FATAL] IO Error"},
		{88, "[ERROR] Disk quota nearing limit. Current usage: 88%."},
		{50, "[INFO] Disk monitoring"},
	}
	for _, c := range cases {
		st := NewState(DefaultBaseline)
		st.ActiveFaults = []FaultKind{FaultDiskExhaustion}
		st.DiskPercent = c.disk
		msg, ok := Synthesize(st, seededRand())
		if !ok || !strings.HasPrefix(msg, c.prefix) {
			t.Errorf("disk %.0f: expected prefix %q, got %q", c.disk, c.prefix, msg)
		}
	}
}

func TestSynthesizeLatencyTiers(t *testing.T) {
	st := NewState(DefaultBaseline)
	st.ActiveFaults = []FaultKind{FaultLatency}
	st.LatencyMs = 5600
	msg, _ := Synthesize(st, seededRand())
	if !strings.HasPrefix(msg, "[ERROR] HTTP 504 Gateway Timeout") {
		t.Errorf("unexpected high latency line %q", msg)
	}
	st.LatencyMs = 615
	msg, _ = Synthesize(st, seededRand())
	if msg != "[WARN] Latency spike: Average response time increased to 615ms. Checking downstream health." {
		t.Errorf("unexpected latency line %q", msg)
	}
}

func TestSynthesizePrecedence(t *testing.T) {
	st := NewState(DefaultBaseline)
	st.ActiveFaults = []FaultKind{FaultLatency, FaultDiskExhaustion, FaultMemoryLeak}
	st.MemoryMB = 200
	st.DiskPercent = 99
	st.LatencyMs = 9000
	msg, _ := Synthesize(st, seededRand())
	if !strings.Contains(msg, "BufferPool") {
		t.Errorf("memory leak should win, got %q", msg)
	}
	st.ActiveFaults = []FaultKind{FaultLatency, FaultDiskExhaustion}
	msg, _ = Synthesize(st, seededRand())
	if !strings.Contains(msg, "No space left") {
		t.Errorf("disk should win over latency, got %q", msg)
	}
}

func TestSynthesizeQuietNode(t *testing.T) {
	st := NewState(DefaultBaseline)
	r := seededRand()
	hits := 0
	for i := 0; i < 10000; i++ {
		msg, ok := Synthesize(st, r)
		if ok {
			hits++
			if !strings.Contains(msg, "network jitter") {
				t.Fatalf("unexpected quiet line %q", msg)
			}
		}
	}
	if hits == 0 || hits > 1000 {
		t.Errorf("expected roughly 5%% jitter lines, got %d/10000", hits)
	}
}

func TestClassifyLevel(t *testing.T) {
	cases := []struct {
		msg  string
		want LogLevel
	}{
		{"[FATAL] IO Error", LevelError},
		{"[ERROR] HTTP 504", LevelError},
		{"[WARN] Latency spike", LevelWarn},
		{"[INFO] Disk monitoring: anomalous write pattern", LevelWarn},
	}
	for _, c := range cases {
		if got := ClassifyLevel(c.msg); got != c.want {
			t.Errorf("%q: expected %s, got %s", c.msg, c.want, got)
		}
	}
}

func TestGenerateLog(t *testing.T) {
	gen := NewGenerator("node-1")
	st := NewState(DefaultBaseline)
	st = Inject(st, FaultDiskExhaustion)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	entry, ok := gen.GenerateLog(st, seededRand(), now)
	if !ok {
		t.Fatalf("expected a log entry")
	}
	if entry.NodeID != "node-1" {
		t.Errorf("expected node-1, got %s", entry.NodeID)
	}
	if entry.Source != LogSource {
		t.Errorf("expected source %s, got %s", LogSource, entry.Source)
	}
	if entry.Level != LevelWarn {
		t.Errorf("expected INFO tier stored as WARN, got %s", entry.Level)
	}
	if entry.ID == "" || !entry.Timestamp.Equal(now) {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestStateRow(t *testing.T) {
	gen := NewGenerator("node-1")
	st := Inject(NewState(DefaultBaseline), FaultLatency)
	st = Inject(st, FaultMemoryLeak)
	row := gen.StateRow(st, 42*time.Second, time.Now())
	if row.UptimeSeconds != 42 {
		t.Errorf("expected uptime 42, got %d", row.UptimeSeconds)
	}
	if row.FaultList() != "latency,memory_leak" {
		t.Errorf("unexpected fault list %q", row.FaultList())
	}
	st.ActiveFaults[0] = FaultDiskExhaustion
	if row.ActiveFaults[0] != FaultLatency {
		t.Errorf("row shares fault slice with state")
	}
}
