package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testkube/simqueue/internal/app"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()
	tr.Register("a")

	tr.MarkLoading("a", app.ModeDev)
	st, ok := tr.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"loading-dev"}, st.Flags.Classes())

	tr.MarkComplete("a", app.ModeDev)
	st, _ = tr.Get("a")
	assert.Equal(t, []string{"complete-dev"}, st.Flags.Classes())
}

func TestErrorReplacesComplete(t *testing.T) {
	tr := NewTracker()
	tr.MarkLoading("d", app.ModeBuilt)
	tr.MarkComplete("d", app.ModeBuilt)
	tr.MarkError("d", app.ModeBuilt)

	st, _ := tr.Get("d")
	assert.False(t, st.Flags.CompleteBuilt)
	assert.True(t, st.Flags.ErrorBuilt)
	assert.False(t, st.Flags.LoadingBuilt)

	// a timeout after the error must not resurrect the complete marker
	tr.MarkComplete("d", app.ModeBuilt)
	st, _ = tr.Get("d")
	assert.False(t, st.Flags.CompleteBuilt)
	assert.True(t, st.Flags.ErrorBuilt)
}

func TestModesAreIndependent(t *testing.T) {
	tr := NewTracker()
	tr.MarkError("a", app.ModeDev)
	tr.MarkBuild("a", true)
	tr.MarkLoading("a", app.ModeBuilt)

	st, _ := tr.Get("a")
	assert.Equal(t, []string{"loading-build", "error-dev", "complete-grunt"}, st.Flags.Classes())
}

func TestSnapshotOrderAndSubscribe(t *testing.T) {
	tr := NewTracker()
	changes := tr.Subscribe(8)
	tr.Register("b")
	tr.Register("a")
	tr.Register("b")
	tr.MarkBuild("a", false)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].Target)
	assert.Equal(t, "a", snap[1].Target)
	assert.Equal(t, []string{"a", "b"}, tr.Names())

	change := <-changes
	assert.Equal(t, "a", change.Status.Target)
	assert.True(t, change.Status.Flags.ErrorGrunt)
}

func TestSummarize(t *testing.T) {
	tr := NewTracker()
	tr.MarkComplete("a", app.ModeDev)
	tr.MarkError("b", app.ModeDev)
	tr.MarkBuild("b", false)
	tr.MarkBuild("a", true)
	tr.MarkComplete("a", app.ModeBuilt)

	sum := Summarize(tr.Snapshot())
	assert.Equal(t, Summary{
		Targets:      2,
		DevPassed:    1,
		DevFailed:    1,
		BuiltPassed:  1,
		BuildsPassed: 1,
		BuildsFailed: 1,
	}, sum)
	assert.True(t, sum.Failed())
}
