package config

import (
	"errors"
	"fmt"
	"os"

	"discotrack/internal/stats"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadTaxonomy reads the pipeline taxonomy from path (YAML, JSON or TOML).
// A missing file yields the built-in default taxonomy. Optional sections
// left empty in the file keep their defaults.
func LoadTaxonomy(path string) (stats.Taxonomy, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", path).Msg("No pipeline config found, using default taxonomy")
		return stats.DefaultTaxonomy(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return stats.Taxonomy{}, fmt.Errorf("read pipeline config: %w", err)
	}

	var t stats.Taxonomy
	if err := v.Unmarshal(&t); err != nil {
		return stats.Taxonomy{}, fmt.Errorf("decode pipeline config: %w", err)
	}

	def := stats.DefaultTaxonomy()
	if len(t.OnHold) == 0 {
		t.OnHold = def.OnHold
	}
	if len(t.Active) == 0 {
		t.Active = append(append([]string{}, t.Discovery...), t.Terminal[stats.FamilyBuild]...)
		t.Active = append(t.Active, t.Terminal[stats.FamilyBeta]...)
	}

	if err := t.Validate(); err != nil {
		return stats.Taxonomy{}, err
	}
	log.Info().Str("path", path).Int("discovery", len(t.Discovery)).Msg("Loaded pipeline taxonomy")
	return t, nil
}

// LoadPipeline is LoadTaxonomy followed by compilation.
func LoadPipeline(path string) (*stats.Pipeline, error) {
	t, err := LoadTaxonomy(path)
	if err != nil {
		return nil, err
	}
	return stats.NewPipeline(t)
}

// WriteDefaultTaxonomy writes the default taxonomy to path, refusing to overwrite.
func WriteDefaultTaxonomy(path string) error {
	def := stats.DefaultTaxonomy()
	terminal := make(map[string][]string, len(def.Terminal))
	for fam, statuses := range def.Terminal {
		terminal[string(fam)] = statuses
	}

	v := viper.New()
	v.Set("discovery", def.Discovery)
	v.Set("terminal", terminal)
	v.Set("inactive", def.Inactive)
	v.Set("on_hold_health", def.OnHold)
	v.Set("active", def.Active)
	return v.SafeWriteConfigAs(path)
}
