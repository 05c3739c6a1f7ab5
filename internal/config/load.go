package config

import (
	stderrors "errors"
	"io/fs"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/imkarma/crew/internal/errors"
)

// envAliases binds config keys to the environment variable names the
// Azure and relay tooling already uses, in addition to CREW_<SECTION>_<KEY>.
var envAliases = map[string][]string{
	"completion.api_key":     {"CREW_COMPLETION_API_KEY", "AOAI_API_KEY"},
	"completion.endpoint":    {"CREW_COMPLETION_ENDPOINT", "AOAI_ENDPOINT"},
	"completion.api_version": {"CREW_COMPLETION_API_VERSION", "AOAI_API_VERSION"},
	"relay.project_id":       {"CREW_RELAY_PROJECT_ID", "GCP_PROJECT_ID"},
	"relay.topic_prefix":     {"CREW_RELAY_TOPIC_PREFIX", "GCP_TOPIC_PREFIX"},
}

func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix("CREW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("completion.provider", d.Completion.Provider)
	v.SetDefault("completion.model", d.Completion.Model)
	v.SetDefault("completion.endpoint", d.Completion.Endpoint)
	v.SetDefault("completion.deployment", d.Completion.Deployment)
	v.SetDefault("completion.api_version", d.Completion.APIVersion)
	v.SetDefault("completion.api_key_env", d.Completion.APIKeyEnv)
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.temperature", d.Completion.Temperature)
	v.SetDefault("completion.max_tokens", d.Completion.MaxTokens)
	v.SetDefault("completion.timeout_sec", d.Completion.TimeoutSec)
	v.SetDefault("completion.command", d.Completion.Command)
	v.SetDefault("completion.args", []string{})

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.endpoint", d.Embedding.Endpoint)
	v.SetDefault("embedding.api_version", d.Embedding.APIVersion)
	v.SetDefault("embedding.api_key_env", d.Embedding.APIKeyEnv)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.workers", d.Embedding.Workers)

	v.SetDefault("relay.backend", d.Relay.Backend)
	v.SetDefault("relay.project_id", d.Relay.ProjectID)
	v.SetDefault("relay.topic_prefix", d.Relay.TopicPrefix)
	v.SetDefault("relay.redis_addr", d.Relay.RedisAddr)
	v.SetDefault("relay.poll_interval", d.Relay.PollInterval)
	v.SetDefault("relay.timeout", d.Relay.Timeout)

	v.SetDefault("planner.max_steps", d.Planner.MaxSteps)
	v.SetDefault("planner.history_limit", d.Planner.HistoryLimit)
	v.SetDefault("planner.export_dir", d.Planner.ExportDir)

	v.SetDefault("docqa.index_dir", d.DocQA.IndexDir)
	v.SetDefault("docqa.separator", d.DocQA.Separator)
	v.SetDefault("docqa.chunk_size", d.DocQA.ChunkSize)
	v.SetDefault("docqa.chunk_overlap", d.DocQA.ChunkOverlap)
	v.SetDefault("docqa.top_k", d.DocQA.TopK)

	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// Load reads the config file at path, layers environment overrides on top,
// and validates the result. A missing file is not an error: defaults and
// the environment are used instead.
func Load(path string) (*Config, error) {
	v := newViperInstance()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// isNotFound reports a missing config file. viper returns an fs error
// rather than ConfigFileNotFoundError when SetConfigFile is used.
func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return stderrors.As(err, &notFound) || stderrors.Is(err, fs.ErrNotExist)
}
