package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"reporanger/internal/flags"
)

// FileConfig is the YAML configuration file shape. Every field mirrors a CLI
// flag; scalar fields are pointers so an absent key is distinguishable from a
// zero value.
type FileConfig struct {
	Org        *string  `yaml:"org"`
	User       *string  `yaml:"user"`
	Repos      []string `yaml:"repos"`
	Include    []string `yaml:"include"`
	Exclude    []string `yaml:"exclude"`
	Topic      []string `yaml:"topic"`
	Visibility *string  `yaml:"visibility"`
	Archived   *string  `yaml:"archived"`
	Forks      *string  `yaml:"forks"`
	MaxRepos   *int     `yaml:"max_repos"`

	Set    []string `yaml:"set"`
	DryRun *bool    `yaml:"dry_run"`

	ConsoleFormat       *string  `yaml:"console_format"`
	ConsoleFilterStatus []string `yaml:"console_filter_status"`
	Report              *string  `yaml:"report"`
	Out                 *string  `yaml:"out"`
	OutFormat           *string  `yaml:"out_format"`
	NoConsole           *bool    `yaml:"no_console"`
	NoColor             *bool    `yaml:"no_color"`

	Concurrency *int    `yaml:"concurrency"`
	Timeout     *string `yaml:"timeout"`
	MaxAttempts *int    `yaml:"max_attempts"`
	BackoffBase *string `yaml:"backoff_base"`
	BackoffCap  *string `yaml:"backoff_cap"`
}

// LoadFile reads and strictly decodes a YAML config file. Unknown keys are an
// error so typos surface instead of being silently ignored.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fc FileConfig
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// ApplyTo merges the file configuration into cfg. CLI flags win: a field is
// only taken from the file when the corresponding flag was not set on the
// command line, as reported by flagChanged.
func (fc *FileConfig) ApplyTo(cfg *Config, flagChanged func(name string) bool) error {
	if flagChanged == nil {
		flagChanged = func(string) bool { return false }
	}

	setString := func(flag string, dst *string, src *string) {
		if src != nil && !flagChanged(flag) {
			*dst = *src
		}
	}
	setStrings := func(flag string, dst *[]string, src []string) {
		if len(src) > 0 && !flagChanged(flag) {
			*dst = append([]string(nil), src...)
		}
	}
	setInt := func(flag string, dst *int, src *int) {
		if src != nil && !flagChanged(flag) {
			*dst = *src
		}
	}
	setBool := func(flag string, dst *bool, src *bool) {
		if src != nil && !flagChanged(flag) {
			*dst = *src
		}
	}
	setDuration := func(flag string, dst *time.Duration, src *string) error {
		if src == nil || flagChanged(flag) {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("config key %s: %w", flag, err)
		}
		*dst = d
		return nil
	}

	setString(flags.FlagOrg, &cfg.Targeting.Org, fc.Org)
	setString(flags.FlagUser, &cfg.Targeting.User, fc.User)
	setStrings(flags.FlagRepos, &cfg.Targeting.Repos, fc.Repos)
	setStrings(flags.FlagInclude, &cfg.Targeting.Include, fc.Include)
	setStrings(flags.FlagExclude, &cfg.Targeting.Exclude, fc.Exclude)
	setStrings(flags.FlagTopic, &cfg.Targeting.Topic, fc.Topic)
	setString(flags.FlagVisibility, &cfg.Targeting.Visibility, fc.Visibility)
	setString(flags.FlagArchived, &cfg.Targeting.Archived, fc.Archived)
	setString(flags.FlagForks, &cfg.Targeting.Forks, fc.Forks)
	setInt(flags.FlagMaxRepos, &cfg.Targeting.MaxRepos, fc.MaxRepos)

	setStrings(flags.FlagSet, &cfg.Op.Set, fc.Set)
	setBool(flags.FlagDryRun, &cfg.Op.DryRun, fc.DryRun)

	setString(flags.FlagConsoleFormat, &cfg.Output.ConsoleFormat, fc.ConsoleFormat)
	setStrings(flags.FlagConsoleFilterStatus, &cfg.Output.ConsoleFilterStatus, fc.ConsoleFilterStatus)
	setString(flags.FlagReport, &cfg.Output.Report, fc.Report)
	setString(flags.FlagOut, &cfg.Output.Out, fc.Out)
	setString(flags.FlagOutFormat, &cfg.Output.OutFormat, fc.OutFormat)
	setBool(flags.FlagNoConsole, &cfg.Output.NoConsole, fc.NoConsole)
	setBool(flags.FlagNoColor, &cfg.Output.NoColor, fc.NoColor)

	setInt(flags.FlagConcurrency, &cfg.Runtime.Concurrency, fc.Concurrency)
	if err := setDuration(flags.FlagTimeout, &cfg.Runtime.Timeout, fc.Timeout); err != nil {
		return err
	}
	setInt(flags.FlagMaxAttempts, &cfg.Runtime.MaxAttempts, fc.MaxAttempts)
	if err := setDuration(flags.FlagBackoffBase, &cfg.Runtime.BackoffBase, fc.BackoffBase); err != nil {
		return err
	}
	if err := setDuration(flags.FlagBackoffCap, &cfg.Runtime.BackoffCap, fc.BackoffCap); err != nil {
		return err
	}

	return nil
}
