package engine

import (
	"encoding/json"
	"testing"
)

func orders(seq []Task) []int {
	out := make([]int, len(seq))
	for i, t := range seq {
		out[i] = t.Order()
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPhaseSequence(t *testing.T) {
	tasks := []Task{
		&FuncTask{TaskInfo: TaskInfo{TaskName: "b", TaskOrder: 2}},
		&FuncTask{TaskInfo: TaskInfo{TaskName: "c", TaskOrder: 3}},
		&FuncTask{TaskInfo: TaskInfo{TaskName: "a", TaskOrder: 1}},
	}

	tests := []struct {
		kind PhaseKind
		want []int
	}{
		{PhaseValidate, []int{1, 2, 3}},
		{PhaseInstall, []int{1, 2, 3}},
		{PhaseCommit, []int{1, 2, 3}},
		{PhaseUninstall, []int{1, 2, 3}},
		{PhaseRollback, []int{3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			p, err := NewPhase(tt.kind, tasks...)
			if err != nil {
				t.Fatalf("NewPhase: %v", err)
			}
			if got := orders(p.Sequence()); !equalInts(got, tt.want) {
				t.Errorf("Sequence() orders = %v, want %v", got, tt.want)
			}
			if p.Len() != 3 {
				t.Errorf("Len() = %d", p.Len())
			}
		})
	}
}

func TestNewPhaseRejectsDuplicateOrder(t *testing.T) {
	_, err := NewPhase(PhaseInstall,
		&FuncTask{TaskInfo: TaskInfo{TaskName: "first", TaskOrder: 1}},
		&FuncTask{TaskInfo: TaskInfo{TaskName: "second", TaskOrder: 1}},
	)
	if err == nil {
		t.Fatal("expected duplicate order to be rejected")
	}
	if !HasCode(err, ErrCodeValidation) || !IsPermanent(err) {
		t.Errorf("expected permanent validation error, got %v", err)
	}
}

func TestNewPhaseRejectsUnknownKind(t *testing.T) {
	if _, err := NewPhase(PhaseKind("upgrade")); err == nil {
		t.Error("expected unknown phase kind to be rejected")
	}
}

func TestMustPhasePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustPhase should panic on duplicate orders")
		}
	}()
	MustPhase(PhaseCommit,
		&FuncTask{TaskInfo: TaskInfo{TaskName: "a", TaskOrder: 1}},
		&FuncTask{TaskInfo: TaskInfo{TaskName: "b", TaskOrder: 1}},
	)
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(TaskStatusSkipped)
	if err != nil || string(data) != `"skipped"` {
		t.Fatalf("Marshal = %s, %v", data, err)
	}

	var ps PhaseStatus
	if err := json.Unmarshal([]byte(`"failed"`), &ps); err != nil || ps != PhaseStatusFailed {
		t.Errorf("Unmarshal = %s, %v", ps, err)
	}
	if err := json.Unmarshal([]byte(`"exploded"`), &ps); err == nil {
		t.Error("expected invalid status to be rejected")
	}

	if !PhaseStatusSucceeded.IsTerminal() || PhaseStatusRunning.IsTerminal() {
		t.Error("unexpected IsTerminal for phase status")
	}
	if !TaskStatusSkipped.IsTerminal() || TaskStatusPending.IsTerminal() {
		t.Error("unexpected IsTerminal for task status")
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		p    Progress
		want float64
	}{
		{Progress{Done: 0, Total: 0}, 100},
		{Progress{Done: 50, Total: 200}, 25},
		{Progress{Done: 200, Total: 200}, 100},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("%+v.Percent() = %v, want %v", tt.p, got, tt.want)
		}
	}
}
