package help

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"otogi-helpnav/pkg/otogi"
)

const (
	maxSuggestions      = 3
	maxTypoDistance     = 2
	suggestionSeparator = ", "
)

// suggestCommands ranks visible command names resembling query.
//
// Subsequence matches come first, ordered by fuzzy rank, then names within a
// small edit distance catch transposed or mistyped letters.
func suggestCommands(query string, commands []otogi.RegisteredCommand) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	names := make([]string, 0, len(commands))
	labels := make(map[string]string, len(commands))
	for _, registered := range commands {
		spec := registered.Command
		if spec.Hidden {
			continue
		}
		name := strings.ToLower(spec.Name)
		if _, exists := labels[name]; exists {
			continue
		}
		labels[name] = string(spec.Prefix) + spec.Name
		names = append(names, name)
	}

	ranks := fuzzy.RankFindFold(query, names)
	sort.Sort(ranks)

	picked := make(map[string]struct{}, maxSuggestions)
	suggestions := make([]string, 0, maxSuggestions)
	add := func(name string) {
		if len(suggestions) >= maxSuggestions {
			return
		}
		if _, exists := picked[name]; exists {
			return
		}
		picked[name] = struct{}{}
		suggestions = append(suggestions, labels[name])
	}

	for _, rank := range ranks {
		add(rank.Target)
	}

	type typo struct {
		name     string
		distance int
	}
	typos := make([]typo, 0, len(names))
	for _, name := range names {
		distance := levenshtein.ComputeDistance(query, name)
		if distance <= maxTypoDistance {
			typos = append(typos, typo{name: name, distance: distance})
		}
	}
	sort.SliceStable(typos, func(i, j int) bool {
		return typos[i].distance < typos[j].distance
	})
	for _, candidate := range typos {
		add(candidate.name)
	}

	return suggestions
}
