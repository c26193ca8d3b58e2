package session

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.MigrateUp(); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}
	return s
}

func TestMigrateLifecycle(t *testing.T) {
	s := newTestStore(t)

	version, dirty, err := s.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("version = %d dirty = %v, want 1 clean", version, dirty)
	}

	// Idempotent at latest.
	if err := s.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}

	if err := s.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	version, _, err = s.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion after down: %v", err)
	}
	if version != 0 {
		t.Fatalf("version after down = %d, want 0", version)
	}

	if err := s.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp after down: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{
		StartedUnix:  100.5,
		Source:       "synthetic",
		Controller:   "proportional",
		SettingsJSON: `{"capture_size":256}`,
	}
	if err := s.BeginSession(sess); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	if !strings.HasPrefix(sess.ID, "ses_") {
		t.Fatalf("session id = %q, want ses_ prefix", sess.ID)
	}

	got, err := s.Session(sess.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got.StartedUnix != 100.5 || got.Source != "synthetic" ||
		got.Controller != "proportional" || got.SettingsJSON != `{"capture_size":256}` {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.EndedUnix != 0 {
		t.Errorf("ended_unix = %v before EndSession, want 0", got.EndedUnix)
	}

	if err := s.EndSession(sess.ID, 161.25); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	got, err = s.Session(sess.ID)
	if err != nil {
		t.Fatalf("Session after end: %v", err)
	}
	if got.EndedUnix != 161.25 {
		t.Errorf("ended_unix = %v, want 161.25", got.EndedUnix)
	}

	if err := s.EndSession("ses_missing", 1); err == nil {
		t.Error("EndSession on unknown id succeeded")
	}
	if _, err := s.Session("ses_missing"); err == nil {
		t.Error("Session on unknown id succeeded")
	}
}

func TestAppendAndQueryTicks(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{StartedUnix: 1}
	if err := s.BeginSession(sess); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}

	// Inserted out of order; queries return sequence order.
	for _, seq := range []int64{2, 0, 1} {
		tick := &Tick{
			SessionID:   sess.ID,
			Seq:         seq,
			AtUnix:      float64(seq) / 60,
			Status:      StatusMove,
			Candidates:  int(seq) + 1,
			LockID:      "lock_a",
			PosX:        100 + float64(seq),
			PosY:        120,
			Area:        144,
			VelX:        30,
			VelY:        -5,
			PredX:       103 + float64(seq),
			PredY:       119.5,
			Coefficient: 0.2,
			DX:          3,
			DY:          -1,
			DurationMS:  2.5,
		}
		if err := s.AppendTick(tick); err != nil {
			t.Fatalf("AppendTick seq %d: %v", seq, err)
		}
	}

	ticks, err := s.Ticks(sess.ID, 0)
	if err != nil {
		t.Fatalf("Ticks: %v", err)
	}
	if len(ticks) != 3 {
		t.Fatalf("got %d ticks, want 3", len(ticks))
	}
	for i, tick := range ticks {
		if tick.Seq != int64(i) {
			t.Errorf("tick %d has seq %d", i, tick.Seq)
		}
	}
	if got := ticks[1]; got.PosX != 101 || got.PredY != 119.5 || got.DX != 3 || got.DY != -1 {
		t.Errorf("tick round trip mismatch: %+v", got)
	}

	limited, err := s.Ticks(sess.ID, 2)
	if err != nil {
		t.Fatalf("Ticks limited: %v", err)
	}
	if len(limited) != 2 || limited[1].Seq != 1 {
		t.Errorf("limited ticks = %d rows, want first two sequences", len(limited))
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	older := &Session{StartedUnix: 100, Source: "udp"}
	newer := &Session{StartedUnix: 200, Source: "synthetic"}
	if err := s.BeginSession(older); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginSession(newer); err != nil {
		t.Fatal(err)
	}

	all, err := s.Sessions(0)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(all) != 2 || all[0].ID != newer.ID || all[1].ID != older.ID {
		t.Errorf("sessions not newest first: %+v", all)
	}

	one, err := s.Sessions(1)
	if err != nil {
		t.Fatalf("Sessions limit: %v", err)
	}
	if len(one) != 1 || one[0].ID != newer.ID {
		t.Errorf("limited sessions = %+v, want only the newer one", one)
	}
}

func TestSummarize(t *testing.T) {
	const eps = 1e-9
	s := newTestStore(t)

	sess := &Session{StartedUnix: 1}
	if err := s.BeginSession(sess); err != nil {
		t.Fatal(err)
	}

	ticks := []*Tick{
		{Seq: 0, Status: StatusNoTarget, DurationMS: 1},
		{Seq: 1, Status: StatusMove, DX: 3, DY: 4, Coefficient: 0.2, DurationMS: 2},
		{Seq: 2, Status: StatusMove, DX: 6, DY: 8, Coefficient: 0.4, DurationMS: 3},
		{Seq: 3, Status: StatusHold, DurationMS: 4},
		{Seq: 4, Status: StatusMove, DX: 0, DY: 0, Coefficient: 0.6, DurationMS: 5},
	}
	for _, tick := range ticks {
		tick.SessionID = sess.ID
		if err := s.AppendTick(tick); err != nil {
			t.Fatalf("AppendTick: %v", err)
		}
	}

	sum, err := s.Summarize(sess.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if sum.Ticks != 5 {
		t.Errorf("ticks = %d, want 5", sum.Ticks)
	}
	wantStatuses := map[string]int{StatusMove: 3, StatusHold: 1, StatusNoTarget: 1}
	for status, n := range wantStatuses {
		if sum.Statuses[status] != n {
			t.Errorf("statuses[%s] = %d, want %d", status, sum.Statuses[status], n)
		}
	}

	// Step magnitudes over move ticks are 5, 10, 0.
	if math.Abs(sum.StepMean-5) > eps {
		t.Errorf("step mean = %v, want 5", sum.StepMean)
	}
	if math.Abs(sum.StepStdDev-5) > eps {
		t.Errorf("step stddev = %v, want 5", sum.StepStdDev)
	}
	if math.Abs(sum.StepP50-5) > eps {
		t.Errorf("step p50 = %v, want 5", sum.StepP50)
	}
	if math.Abs(sum.StepP95-10) > eps {
		t.Errorf("step p95 = %v, want 10", sum.StepP95)
	}
	if math.Abs(sum.CoefficientMean-0.4) > eps {
		t.Errorf("coefficient mean = %v, want 0.4", sum.CoefficientMean)
	}
	if math.Abs(sum.DurationMeanMS-3) > eps {
		t.Errorf("duration mean = %v, want 3", sum.DurationMeanMS)
	}
	if math.Abs(sum.DurationP95MS-5) > eps {
		t.Errorf("duration p95 = %v, want 5", sum.DurationP95MS)
	}
}

func TestSummarizeEmptySession(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{StartedUnix: 1}
	if err := s.BeginSession(sess); err != nil {
		t.Fatal(err)
	}

	sum, err := s.Summarize(sess.ID)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Ticks != 0 || sum.StepMean != 0 || sum.DurationMeanMS != 0 {
		t.Errorf("empty session summary = %+v, want zeroes", sum)
	}

	if _, err := s.Summarize("ses_missing"); err == nil {
		t.Error("Summarize on unknown session succeeded")
	}
}
