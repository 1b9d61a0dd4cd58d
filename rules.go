package automator

import (
	"github.com/agentstation/automator/pkg/config"
	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/locator"
)

// CompileRules builds the locator rules of one source repository. Release
// files without patterns of their own use the global lists.
func CompileRules(cfg *config.Config, src config.SourceRepo) ([]locator.Rule, error) {
	rules := make([]locator.Rule, 0, len(src.ReleaseFiles))
	for _, file := range src.ReleaseFiles {
		patterns := cfg.Regexes(file)
		if len(patterns) == 0 {
			return nil, errors.NewConfigError(src.Repo, "no regex configured for "+file.Path, nil)
		}
		rule, err := locator.NewRule(file.Path, file.Ignore, patterns, cfg.ShaRegexes(file), file.ID)
		if err != nil {
			return nil, errors.NewConfigError(src.Repo, "invalid release file "+file.Path, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
