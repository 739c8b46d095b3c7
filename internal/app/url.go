package app

import (
	"net/url"
	"strconv"
	"strings"
)

// signalParams ask the target page to report back through postMessage.
const signalParams = "postMessageOnLoad&postMessageOnError"

const pageSuffix = "_en.html"

// generationParam carries the load generation inside the page URL. Pages
// echo their own URL in every signal, so the generation identifies the
// document that sent it.
const generationParam = "simqueueGeneration"

// TargetURL builds the deterministic URL for a task, e.g.
// http://localhost/molecule-shapes/build/molecule-shapes_en.html?ea&postMessageOnLoad&postMessageOnError
func TargetURL(baseURL string, task TestTask, query string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString("/")
	b.WriteString(task.TargetName)
	b.WriteString("/")
	if task.IsBuiltArtifact {
		b.WriteString("build/")
	}
	b.WriteString(task.TargetName)
	b.WriteString(pageSuffix)

	query = strings.TrimLeft(query, "?&")
	b.WriteString("?")
	if query != "" {
		b.WriteString(query)
		b.WriteString("&")
	}
	b.WriteString(signalParams)
	return b.String()
}

// NameFromURL recovers the target name from a URL built by TargetURL.
// It returns false when the URL does not follow the page convention.
func NameFromURL(url string) (string, bool) {
	end := strings.LastIndex(url, pageSuffix)
	if end < 0 {
		return "", false
	}
	head := url[:end]
	name := head[strings.LastIndex(head, "/")+1:]
	if name == "" {
		return "", false
	}
	return name, true
}

// ModeFromURL reports which variant a URL points at. The second result is
// false when the URL carries no recognizable page path.
func ModeFromURL(url string) (Mode, bool) {
	end := strings.LastIndex(url, pageSuffix)
	if end < 0 {
		return ModeDev, false
	}
	head := url[:end]
	dir := head[:strings.LastIndex(head, "/")+1]
	if strings.HasSuffix(dir, "/build/") {
		return ModeBuilt, true
	}
	return ModeDev, true
}

// WithGeneration appends the load generation to a target URL.
func WithGeneration(targetURL string, generation uint64) string {
	sep := "&"
	if !strings.Contains(targetURL, "?") {
		sep = "?"
	}
	return targetURL + sep + generationParam + "=" + strconv.FormatUint(generation, 10)
}

// GenerationFromURL reads the generation added by WithGeneration.
func GenerationFromURL(targetURL string) (uint64, bool) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return 0, false
	}
	raw := u.Query().Get(generationParam)
	if raw == "" {
		return 0, false
	}
	gen, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, true
}
