package app

import (
	"strings"
)

// ParseTargetList splits a line-delimited target list, ignoring blank lines
// and carriage returns.
func ParseTargetList(text string) []string {
	text = strings.ReplaceAll(text, "\r", "")
	var names []string
	for _, line := range strings.Split(text, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// SelectOptions narrows the fetched list down to what this run tests
type SelectOptions struct {
	Override    []string // replaces the fetched list entirely when non-empty
	Exclude     []string
	ShardGroups int
	ShardIndex  int
}

// SelectTargets applies override, exclusion and round-robin sharding, in
// that order. Duplicate names are dropped so every target stays unique.
func SelectTargets(fetched []string, opts SelectOptions) []string {
	names := fetched
	if len(opts.Override) > 0 {
		names = opts.Override
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		excluded[strings.TrimSpace(name)] = true
	}

	seen := make(map[string]bool, len(names))
	var kept []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || excluded[name] || seen[name] {
			continue
		}
		seen[name] = true
		kept = append(kept, name)
	}

	if opts.ShardGroups <= 1 {
		return kept
	}
	var shard []string
	for i, name := range kept {
		if i%opts.ShardGroups == opts.ShardIndex {
			shard = append(shard, name)
		}
	}
	return shard
}

// BuildTargets turns names into targets with the given participation flags.
func BuildTargets(names []string, dev, build bool) []Target {
	targets := make([]Target, 0, len(names))
	for _, name := range names {
		targets = append(targets, Target{Name: name, Dev: dev, Build: build})
	}
	return targets
}
