package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetURL(t *testing.T) {
	tests := []struct {
		name     string
		task     TestTask
		query    string
		expected string
	}{
		{
			name:     "dev",
			task:     TestTask{TargetName: "molecule-shapes"},
			expected: "http://localhost/molecule-shapes/molecule-shapes_en.html?postMessageOnLoad&postMessageOnError",
		},
		{
			name:     "built with query",
			task:     TestTask{TargetName: "molecule-shapes", IsBuiltArtifact: true},
			query:    "?ea&brand=phet",
			expected: "http://localhost/molecule-shapes/build/molecule-shapes_en.html?ea&brand=phet&postMessageOnLoad&postMessageOnError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TargetURL("http://localhost/", tt.task, tt.query))
		})
	}
}

func TestNameAndModeFromURL(t *testing.T) {
	tests := []struct {
		url      string
		name     string
		mode     Mode
		expectOK bool
	}{
		{"http://localhost/phet/git/molecule-shapes/molecule-shapes_en.html?ea&postMessageOnLoad", "molecule-shapes", ModeDev, true},
		{"http://localhost/faraday/build/faraday_en.html", "faraday", ModeBuilt, true},
		{"about:blank", "", ModeDev, false},
	}

	for _, tt := range tests {
		name, ok := NameFromURL(tt.url)
		assert.Equal(t, tt.expectOK, ok, tt.url)
		assert.Equal(t, tt.name, name, tt.url)

		mode, ok := ModeFromURL(tt.url)
		assert.Equal(t, tt.expectOK, ok, tt.url)
		assert.Equal(t, tt.mode, mode, tt.url)
	}
}

func TestURLRoundTrip(t *testing.T) {
	task := TestTask{TargetName: "gravity-force-lab", IsBuiltArtifact: true}
	url := TargetURL("http://example.com/sims", task, "ea")

	name, ok := NameFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, task.TargetName, name)

	mode, _ := ModeFromURL(url)
	assert.Equal(t, ModeBuilt, mode)
}

func TestParseTargetList(t *testing.T) {
	names := ParseTargetList("a\r\nb\n\n  c  \n")
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Empty(t, ParseTargetList("\n\n"))
}

func TestSelectTargets(t *testing.T) {
	fetched := []string{"a", "b", "c", "d", "e", "a"}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, SelectTargets(fetched, SelectOptions{}))
	assert.Equal(t, []string{"x", "y"}, SelectTargets(fetched, SelectOptions{Override: []string{"x", "y"}}))
	assert.Equal(t, []string{"a", "c", "e"}, SelectTargets(fetched, SelectOptions{Exclude: []string{"b", "d"}}))
	assert.Equal(t, []string{"b", "d"}, SelectTargets(fetched, SelectOptions{ShardGroups: 2, ShardIndex: 1}))
}

func TestTestTaskMode(t *testing.T) {
	assert.Equal(t, ModeDev, TestTask{TargetName: "a"}.Mode())
	assert.Equal(t, ModeBuilt, TestTask{TargetName: "a", IsBuiltArtifact: true}.Mode())
	assert.Equal(t, "a (build)", TestTask{TargetName: "a", IsBuiltArtifact: true}.String())
}

func TestGenerationInURL(t *testing.T) {
	task := TestTask{TargetName: "faraday", IsBuiltArtifact: true}
	url := WithGeneration(TargetURL("http://localhost/", task, "ea"), 12)
	assert.Equal(t, "http://localhost/faraday/build/faraday_en.html?ea&postMessageOnLoad&postMessageOnError&simqueueGeneration=12", url)

	gen, ok := GenerationFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, uint64(12), gen)

	name, ok := NameFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, "faraday", name)
	mode, ok := ModeFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, ModeBuilt, mode)

	assert.Equal(t, "http://localhost/a/a_en.html?simqueueGeneration=3", WithGeneration("http://localhost/a/a_en.html", 3))

	for _, raw := range []string{
		TargetURL("http://localhost/", task, ""),
		"http://localhost/a/a_en.html?simqueueGeneration=x",
		"about:blank",
	} {
		_, ok := GenerationFromURL(raw)
		assert.False(t, ok, raw)
	}
}
