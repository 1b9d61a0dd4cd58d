package app

import (
	"github.com/agentstation/automator/pkg/config"
)

// loadEngineConfig reads the engine configuration and applies the override fragment.
func (a *App) loadEngineConfig() (*config.Config, error) {
	path := a.config.ConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg, err = config.ApplyOverride(cfg, a.config.ConfigOverride); err != nil {
		return nil, err
	}
	a.logger.Debug().Str("path", path).Int("source_repos", len(cfg.SourceRepos)).Msg("Loaded configuration")
	return cfg, nil
}
