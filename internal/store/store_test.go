package store

import "testing"

func TestFirstSampleFixesEpoch(t *testing.T) {
	s := New()
	if s.StartNS() != 0 {
		t.Fatalf("fresh store should have zero epoch")
	}
	s.AddSample("a", 1.0, 500)
	s.AddSample("b", 2.0, 100)
	if s.StartNS() != 500 {
		t.Fatalf("epoch = %d, want 500 (first write wins)", s.StartNS())
	}
}

func TestViewReturnsPointsInArrivalOrder(t *testing.T) {
	s := New()
	s.AddSample("a", 1.0, 10)
	s.AddSample("a", 2.0, 20)
	s.AddSample("a", 3.0, 30)
	pts, dropped := s.View("a")
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if len(pts) != 3 || pts[0].Value != 1.0 || pts[2].Value != 3.0 {
		t.Fatalf("unexpected points %v", pts)
	}
}

func TestPruneRespectsRetentionFloor(t *testing.T) {
	s := New()
	for i := 0; i < 10; i++ {
		s.AddSample("a", float64(i), int64(i+1)*1e9)
	}
	// Cutoff covers everything, but the floor keeps the newest 4.
	counts := s.Prune(100.0, 4)
	if counts["a"] != 6 {
		t.Fatalf("dropped %d points, want 6", counts["a"])
	}
	pts, dropped := s.View("a")
	if dropped != 6 || len(pts) != 4 {
		t.Fatalf("dropped=%d len=%d, want 6 and 4", dropped, len(pts))
	}
	if pts[0].Value != 6.0 {
		t.Fatalf("oldest kept point = %v, want 6", pts[0].Value)
	}
}

func TestPruneSkipsSmallChannels(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.AddSample("a", float64(i), int64(i+1)*1e9)
	}
	if counts := s.Prune(100.0, 5); len(counts) != 0 {
		t.Fatalf("channel at the floor should not be pruned, got %v", counts)
	}
}

func TestPruneKeepsOldViewValid(t *testing.T) {
	s := New()
	for i := 0; i < 10; i++ {
		s.AddSample("a", float64(i), int64(i+1)*1e9)
	}
	before, _ := s.View("a")
	s.Prune(100.0, 2)
	// Copy-on-prune: the slice handed out earlier is untouched.
	if len(before) != 10 || before[0].Value != 0.0 {
		t.Fatalf("pre-prune view mutated: %v", before)
	}
}

func TestLatest(t *testing.T) {
	s := New()
	if _, ok := s.Latest("a"); ok {
		t.Fatalf("empty channel should have no latest value")
	}
	s.AddSample("a", 1.0, 10)
	s.AddSample("a", 2.0, 20)
	if v, ok := s.Latest("a"); !ok || v != 2.0 {
		t.Fatalf("latest = %v %v, want 2 true", v, ok)
	}
}

func TestStatisticsCountsMalformed(t *testing.T) {
	s := New()
	s.AddSample("a", 1.0, 10)
	s.NoteMalformed()
	s.NoteMalformed()
	st := s.Statistics()
	if st.Total != 1 || st.Pruned != 0 || st.Malformed != 2 || st.Held != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestStatisticsPerChannelCounts(t *testing.T) {
	s := New()
	s.AddSample("a", 1.0, 10)
	s.AddSample("a", 2.0, 20)
	s.AddSample("b", 3.0, 30)
	st := s.Statistics()
	if st.PerChannel["a"] != 2 || st.PerChannel["b"] != 1 {
		t.Fatalf("per-channel counts = %v", st.PerChannel)
	}
	if st.Held != 3 {
		t.Fatalf("held = %d, want 3", st.Held)
	}

	s.AddSample("a", 4.0, 2_000_000_000_000)
	s.Prune(1000.0, 1)
	st = s.Statistics()
	if st.PerChannel["a"] != 1 {
		t.Fatalf("per-channel count after prune = %d, want 1", st.PerChannel["a"])
	}
}

func TestClearResetsEpoch(t *testing.T) {
	s := New()
	s.AddSample("a", 1.0, 10)
	s.Clear()
	if s.StartNS() != 0 {
		t.Fatalf("epoch should reset on Clear")
	}
	s.AddSample("a", 2.0, 999)
	if s.StartNS() != 999 {
		t.Fatalf("epoch = %d, want 999", s.StartNS())
	}
}
