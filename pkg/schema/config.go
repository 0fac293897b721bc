// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package schema declares the public configuration document shape:
// runner tuning, plugin sources, the task graph and its wiring, and
// the auxiliary process hooks (before/after scripts, background
// processes) a deployment may declare alongside it.
package schema

// Config is the top-level configuration document, loaded from YAML or
// JSON (the parser only cares about the resulting tree, not the
// source syntax).
type Config struct {
	Runner        RunnerConfig      `yaml:"runner" json:"runner"`
	Plugin        PluginConfig      `yaml:"plugin" json:"plugin"`
	Tasks         []TaskConfig      `yaml:"tasks" json:"tasks"`
	BgProcesses   []BgProcessConfig `yaml:"bg_processes" json:"bg_processes"`
	BeforeTask    []string          `yaml:"before_task" json:"before_task"`
	AfterTask     []string          `yaml:"after_task" json:"after_task"`
	AdminAPI      AdminAPIConfig    `yaml:"admin_api" json:"admin_api"`
	Ledger        LedgerConfig      `yaml:"ledger" json:"ledger"`
}

// UnmarshalYAML accepts both `tasks` and the singular alias `task`,
// and both `before_task`/`before_script` and `after_task`/`after_script`,
// by decoding into a shadow type and falling back to the alias fields
// when the canonical one was not set.
type rawConfig struct {
	Runner        RunnerConfig      `yaml:"runner"`
	Plugin        PluginConfig      `yaml:"plugin"`
	Tasks         []TaskConfig      `yaml:"tasks"`
	TasksAlias    []TaskConfig      `yaml:"task"`
	BgProcesses   []BgProcessConfig `yaml:"bg_processes"`
	BeforeTask    []string          `yaml:"before_task"`
	BeforeScript  []string          `yaml:"before_script"`
	AfterTask     []string          `yaml:"after_task"`
	AfterScript   []string          `yaml:"after_script"`
	AdminAPI      AdminAPIConfig    `yaml:"admin_api"`
	Ledger        LedgerConfig      `yaml:"ledger"`
}

func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// Seed the shadow with the current values so sections absent from
	// the document keep whatever the caller decoded on top of.
	raw := rawConfig{Runner: c.Runner, Plugin: c.Plugin, AdminAPI: c.AdminAPI, Ledger: c.Ledger}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	c.Runner = raw.Runner
	c.Plugin = raw.Plugin
	c.BgProcesses = raw.BgProcesses
	c.AdminAPI = raw.AdminAPI
	c.Ledger = raw.Ledger

	c.Tasks = raw.Tasks
	if len(c.Tasks) == 0 {
		c.Tasks = raw.TasksAlias
	}
	c.BeforeTask = raw.BeforeTask
	if len(c.BeforeTask) == 0 {
		c.BeforeTask = raw.BeforeScript
	}
	c.AfterTask = raw.AfterTask
	if len(c.AfterTask) == 0 {
		c.AfterTask = raw.AfterScript
	}
	return nil
}

// RunnerConfig holds engine-wide tuning knobs.
type RunnerConfig struct {
	ChannelCapacity    int    `yaml:"channel_capacity" json:"channel_capacity"`
	TerminationTimeout string `yaml:"termination_timeout" json:"termination_timeout"`
	FinalizerTimeout   string `yaml:"finalizer_timeout" json:"finalizer_timeout"`
	MetadataPadding    int    `yaml:"metadata_padding" json:"metadata_padding"`
}

// PluginConfig lists the shared libraries to load at startup.
type PluginConfig struct {
	PluginFiles []string `yaml:"plugin_files" json:"plugin_files"`
	// OnDuplicate selects what happens when two registered elements
	// share a name: "warn" (default) keeps the most recently
	// registered one and logs the collision, "fatal" aborts startup.
	OnDuplicate string `yaml:"on_duplicate" json:"on_duplicate"`
}

// TaskConfig declares one node in the task graph: which element it
// runs, and which upstream ports feed each of its receive ports.
type TaskConfig struct {
	ID            string     `yaml:"id" json:"id"`
	Element       string     `yaml:"element" json:"element"`
	From          [][]string `yaml:"from" json:"from"`
	ConfFile      string     `yaml:"conf_file" json:"conf_file"`
	Conf          any        `yaml:"conf" json:"conf"`
}

// BgProcessConfig declares one auxiliary process spawned alongside the
// task graph.
type BgProcessConfig struct {
	Command    string `yaml:"command" json:"command"`
	WaitSignal string `yaml:"wait_signal" json:"wait_signal"`
}

// AdminAPIConfig configures the optional HTTP introspection surface.
type AdminAPIConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Addr          string `yaml:"addr" json:"addr"`
	JWTSecret     string `yaml:"jwt_secret" json:"jwt_secret"`
	RateLimitRPS  float64 `yaml:"rate_limit_rps" json:"rate_limit_rps"`
}

// LedgerConfig configures the optional task-run audit trail.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Driver  string `yaml:"driver" json:"driver"` // "sqlite3" or "mysql"
	DSN     string `yaml:"dsn" json:"dsn"`
}
