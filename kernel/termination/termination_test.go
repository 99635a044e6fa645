package termination

import "testing"

func TestEvaluateFirstMatchWins(t *testing.T) {
	h := NewHandler([]Condition{
		{Name: "lose", Expression: "reward < 0", Resolution: Resolution{Broadcast: Lose}},
		{Name: "win", Expression: "reward >= 10", Resolution: Resolution{Broadcast: Win}},
	})
	ctx := Context{Rewards: map[uint32]int32{1: 12}}
	cond, res, ok := h.Evaluate(ctx, []uint32{1})
	if !ok || cond.Name != "win" || res.Broadcast != Win {
		t.Fatalf("Evaluate = %+v, %+v, %v, want win/Win", cond, res, ok)
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	h := NewHandler([]Condition{
		{Name: "win", Expression: "reward >= 10", Resolution: Resolution{Broadcast: Win}},
	})
	_, _, ok := h.Evaluate(Context{Rewards: map[uint32]int32{1: 3}}, []uint32{1})
	if ok {
		t.Error("expected no condition to hold")
	}
}

func TestEvaluatePerPlayer(t *testing.T) {
	h := NewHandler([]Condition{
		{Name: "collected-all", Expression: `count["mineral"] == 0`, Resolution: Resolution{Broadcast: Win}},
	})
	ctx := Context{KindCount: map[string]int{"mineral": 0}}
	_, res, ok := h.Evaluate(ctx, []uint32{1, 2})
	if !ok || res.Broadcast != Win {
		t.Fatalf("expected collected-all to hold, got %v, %+v", ok, res)
	}
}

func TestResolveFallsBackToBroadcast(t *testing.T) {
	r := Resolution{Broadcast: Win, PerPlayer: map[uint32]Outcome{2: Lose}}
	out := r.Resolve([]uint32{1, 2, 3})
	if out[1] != Win || out[2] != Lose || out[3] != Win {
		t.Errorf("Resolve = %v, want {1:WIN,2:LOSE,3:WIN}", out)
	}
}

func TestProgramCaching(t *testing.T) {
	h := NewHandler([]Condition{{Name: "a", Expression: "tick > 5", Resolution: Resolution{Broadcast: Win}}})
	ctx := Context{Tick: 10}
	_, _, ok1 := h.Evaluate(ctx, []uint32{1})
	_, _, ok2 := h.Evaluate(ctx, []uint32{1})
	if !ok1 || !ok2 {
		t.Fatal("expected both evaluations to hold")
	}
	if len(h.compiled) != 1 {
		t.Errorf("expected the program to be compiled once and cached, got %d entries", len(h.compiled))
	}
}
