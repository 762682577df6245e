package session

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadOptions reads ambient option defaults from environment variables, a
// config file and built-in defaults. Environment variables use the prefix
// AGENTSDK_ with snake_case naming; the config file is agentsdk.yaml in the
// current directory or the supplied path. Capability fields (hooks,
// callbacks, tool servers) are set in code after loading.
func LoadOptions(configPath string) (*Options, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AGENTSDK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("agentsdk")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("error unmarshaling options: %w", err)
	}

	if err := validate(&opts); err != nil {
		return nil, fmt.Errorf("options validation failed: %w", err)
	}
	return &opts, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("channel_capacity", DefaultChannelCapacity)
	v.SetDefault("control_timeout", "60s")

	// Scalar keys need a registered default for AutomaticEnv overrides to
	// survive Unmarshal.
	v.SetDefault("cli_path", "")
	v.SetDefault("working_dir", "")
	v.SetDefault("model", "")
	v.SetDefault("fallback_model", "")
	v.SetDefault("system_prompt", "")
	v.SetDefault("append_system_prompt", "")
	v.SetDefault("permission_mode", "")
	v.SetDefault("max_turns", 0)
	v.SetDefault("max_budget_usd", 0.0)
	v.SetDefault("max_thinking_tokens", 0)
	v.SetDefault("resume", "")
	v.SetDefault("fork_session", false)
	v.SetDefault("continue", false)
	v.SetDefault("include_partial_messages", false)
	v.SetDefault("sandbox", false)
	v.SetDefault("sandbox_config", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output_path", "stderr")
}

func validate(opts *Options) error {
	var errs []string

	if opts.ChannelCapacity < 0 {
		errs = append(errs, "channel_capacity must not be negative")
	}
	if opts.ControlTimeout < 0 {
		errs = append(errs, "control_timeout must not be negative")
	}
	if opts.MaxTurns < 0 {
		errs = append(errs, "max_turns must not be negative")
	}
	if opts.MaxBudgetUSD < 0 {
		errs = append(errs, "max_budget_usd must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
