// Package scoring provides modifier-validity rules for performance scoring.
package scoring

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed mods.yaml
var modRulesFile []byte

type modRules struct {
	Unranked     []string   `yaml:"unranked"`
	Incompatible [][]string `yaml:"incompatible"`
}

var (
	unranked     map[string]struct{}
	incompatible [][2]string
)

func init() {
	var rules modRules
	if err := yaml.Unmarshal(modRulesFile, &rules); err != nil {
		panic(fmt.Sprintf("scoring: invalid embedded mods.yaml: %v", err))
	}

	unranked = make(map[string]struct{}, len(rules.Unranked))
	for _, acronym := range rules.Unranked {
		unranked[acronym] = struct{}{}
	}

	for _, pair := range rules.Incompatible {
		if len(pair) != 2 {
			panic(fmt.Sprintf("scoring: incompatible entry must name exactly two mods, got %v", pair))
		}
		incompatible = append(incompatible, [2]string{pair[0], pair[1]})
	}
}

// Scoreable reports whether the modifier combination is valid for
// performance scoring. Legacy scores bypass this check entirely.
func Scoreable(mods []string) bool {
	seen := make(map[string]struct{}, len(mods))
	for _, acronym := range mods {
		if _, dup := seen[acronym]; dup {
			return false
		}
		seen[acronym] = struct{}{}

		if _, bad := unranked[acronym]; bad {
			return false
		}
	}

	for _, pair := range incompatible {
		_, a := seen[pair[0]]
		_, b := seen[pair[1]]
		if a && b {
			return false
		}
	}

	return true
}
