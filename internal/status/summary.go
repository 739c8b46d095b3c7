package status

// Summary counts outcomes across all targets.
type Summary struct {
	Targets      int `json:"targets"`
	DevPassed    int `json:"devPassed"`
	DevFailed    int `json:"devFailed"`
	BuiltPassed  int `json:"builtPassed"`
	BuiltFailed  int `json:"builtFailed"`
	BuildsPassed int `json:"buildsPassed"`
	BuildsFailed int `json:"buildsFailed"`
	Loading      int `json:"loading"`
}

// Summarize aggregates a snapshot.
func Summarize(statuses []TargetStatus) Summary {
	s := Summary{Targets: len(statuses)}
	for _, st := range statuses {
		f := st.Flags
		s.DevPassed += btoi(f.CompleteDev)
		s.DevFailed += btoi(f.ErrorDev)
		s.BuiltPassed += btoi(f.CompleteBuilt)
		s.BuiltFailed += btoi(f.ErrorBuilt)
		s.BuildsPassed += btoi(f.CompleteGrunt)
		s.BuildsFailed += btoi(f.ErrorGrunt)
		s.Loading += btoi(f.LoadingDev || f.LoadingBuilt)
	}
	return s
}

// Failures is the number of failed stages across all targets.
func (s Summary) Failures() int {
	return s.DevFailed + s.BuiltFailed + s.BuildsFailed
}

// Failed reports whether anything in the run failed.
func (s Summary) Failed() bool {
	return s.Failures() > 0
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
