package config

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"git.twitter.biz/focus/rce/receivegate/internal/common"
	"github.com/imdario/mergo"
)

type (
	CLIConfig struct {
		ConfigPath string
		Debug      bool
		Trace      bool
		Quiet      bool
		// Checks to run when none are named on the command line
		Checks []string
		// Repo is the path of the repository the hook runs against
		Repo string
		// Test should be true when we're running tests against the CLI
		Test bool
	}

	logConfig struct {
		cli *CLIConfig
		out io.Writer
	}
)

const EnvPrefix = "RECEIVEGATE_"

func NewLogConfig(cli *CLIConfig, logout io.Writer) common.LogConfig {
	return &logConfig{cli, logout}
}

func (lc *logConfig) IsDebug() bool     { return lc.cli.Debug }
func (lc *logConfig) IsTrace() bool     { return lc.cli.Trace }
func (lc *logConfig) IsQuiet() bool     { return lc.cli.Quiet }
func (lc *logConfig) Output() io.Writer { return lc.out }

// SplitList splits a comma or whitespace separated list, dropping empty
// items.
func SplitList(v string) (items []string) {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

func CLIConfigDefaults(c *CLIConfig) {
	c.Repo = "."
}

func LoadCLIConfigFromEnv(envVisitor common.KeyValueVisitor, c *CLIConfig) (err error) {
	return envVisitor(func(k, v string) (ierr error) {
		// slight optimization over doing a string comparison
		// with all of the items in the following switch statement
		if !strings.HasPrefix(k, EnvPrefix) {
			return nil
		}

		switch k {
		case "RECEIVEGATE_CONFIG":
			c.ConfigPath = v
		case "RECEIVEGATE_REPO":
			if v == "" {
				return errors.Errorf("the env var %#v was set but empty", k)
			}
			c.Repo = v
		case "RECEIVEGATE_CHECKS":
			c.Checks = SplitList(v)
		case "RECEIVEGATE_DEBUG":
			c.Debug = true
		case "RECEIVEGATE_TRACE":
			c.Trace = true
		case "RECEIVEGATE_QUIET":
			c.Quiet = true
		case "RECEIVEGATE_TEST":
			c.Test = true
		default:
		}

		return nil
	})
}

func NewCLIConfigFromEnv(envVisitor common.KeyValueVisitor) (c *CLIConfig, err error) {
	c = new(CLIConfig)
	if err = LoadCLIConfigFromEnv(envVisitor, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Merge the values from o onto the receiver. this mutates the receiver
// when a field is using the default values
func (c *CLIConfig) Merge(o CLIConfig) (err error) {
	// if the merge succeeds errors.Wrapf returns nil
	return errors.Wrapf(
		mergo.Merge(c, o),
		"failed to merge %#v and %#v", c, o,
	)
}
