package app

import "fmt"

// Mode selects which variant of a target gets loaded
type Mode int

const (
	ModeDev   Mode = iota // unbuilt, straight from the source tree
	ModeBuilt             // the artifact produced by the build service
)

func (m Mode) String() string {
	if m == ModeBuilt {
		return "build"
	}
	return "dev"
}

// Target represents a testable sim, identified by its name
type Target struct {
	Name  string
	Dev   bool // participates in dev-mode runs
	Build bool // gets sent to the build service
}

// TestTask is one scheduled run of a target in a specific mode
type TestTask struct {
	TargetName      string `json:"targetName"`
	IsBuiltArtifact bool   `json:"isBuiltArtifact"`
}

// Mode returns the execution mode of the task.
func (t TestTask) Mode() Mode {
	if t.IsBuiltArtifact {
		return ModeBuilt
	}
	return ModeDev
}

func (t TestTask) String() string {
	return fmt.Sprintf("%s (%s)", t.TargetName, t.Mode())
}

// BuildRequest asks the build service to compile one target
type BuildRequest struct {
	TargetName string `json:"targetName"`
}

// BuildResult is the terminal answer of the build service
type BuildResult struct {
	TargetName string `json:"targetName"`
	Success    bool   `json:"success"`
	Output     string `json:"output"`
}
