package cmd

import (
	"fmt"
	"os"
	"strings"

	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/common"
	"git.twitter.biz/focus/rce/receivegate/internal/config"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"git.twitter.biz/focus/rce/receivegate/internal/plugins"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type (
	cmdSetup struct {
		Repo git.LazyGit
		CLI  config.CLIConfig
		// NewRegistry builds the available checks, plugins.NewRegistry
		// unless a test says otherwise
		NewRegistry func(plugins.Options) (*checks.Registry, error)
		env         []string
	}

	CommandHookFn func(*cobra.Command, []string)
)

// Version is set at build time with -ldflags "-X ...cmd.Version=..."
var Version = "dev"

func newCmdSetup(env []string) *cmdSetup {
	setup := &cmdSetup{env: env, NewRegistry: plugins.NewRegistry}
	config.CLIConfigDefaults(&setup.CLI)
	common.CheckErr(config.LoadCLIConfigFromEnv(common.NewEnvVisitor(setup.env), &setup.CLI))
	setup.Repo = git.NewLazyGit(setup.CLI.Repo)
	return setup
}

func LogSetup(lc common.LogConfig) {
	log.SetFormatter(&log.TextFormatter{
		PadLevelText:           true,
		DisableLevelTruncation: true,
		TimestampFormat:        "2006-01-02T15:04:05.000000",
		FullTimestamp:          true,
	})
	log.SetOutput(lc.Output())
	log.SetLevel(log.InfoLevel)
	if lc.IsQuiet() {
		log.SetLevel(log.WarnLevel)
	}
	if lc.IsDebug() {
		log.SetLevel(log.DebugLevel)
	}
	if lc.IsTrace() {
		log.SetLevel(log.TraceLevel)
		os.Setenv("GIT_TRACE2", "1")
	}
}

func (c *cmdSetup) Env() (osenv []string) {
	osenv = make([]string, len(c.env))
	copy(osenv, c.env)
	return osenv
}

func (c *cmdSetup) EnvVisitor() common.KeyValueVisitor {
	return common.NewEnvVisitor(c.env)
}

// this is O(n) but whatever
func (c *cmdSetup) LookupEnv(key string) (v string, ok bool) {
	for _, kv := range c.env {
		if i := strings.Index(kv, "="); i >= 0 {
			if k := kv[0:i]; k == key {
				return kv[i+1:], true
			}
		}
	}
	return "", false
}

func (c *cmdSetup) LogSetupHook() CommandHookFn {
	return func(cc *cobra.Command, args []string) {
		LogSetup(config.NewLogConfig(&c.CLI, cc.ErrOrStderr()))
		log.Debugf("receivegate %s", Version)
	}
}

func (c *cmdSetup) LoadBlobConfig(repo *git.Repo) (*config.BlobConfig, error) {
	rc := config.DefaultRefConfig

	if err := config.LoadRefConfigFromGit(repo.Config().Visit, &rc); err != nil {
		return nil, err
	}
	if err := config.LoadRefConfigFromEnv(c.EnvVisitor(), &rc); err != nil {
		return nil, err
	}

	return rc.BlobConfig(repo), nil
}

type loadedConfig struct {
	text string
	// Source says where the config came from
	Source string
	Config *domain.Config
}

func (lc *loadedConfig) String() string { return lc.text }

const BuiltinDefaults = "built-in defaults"

// LoadMainConfigFile finds the hook config and loads it. It comes from the
// --config path if one is given, otherwise from the admin ref of the
// repository, otherwise the built-in defaults are used. The ref policy is
// then overridden from git config and the environment.
func (c *cmdSetup) LoadMainConfigFile() (loaded *loadedConfig, err error) {
	loaded = &loadedConfig{}

	repo, repoErr := c.Repo()

	switch {
	case c.CLI.ConfigPath != "":
		var data []byte
		if data, err = os.ReadFile(c.CLI.ConfigPath); err != nil {
			return nil, errors.Wrapf(err, "failed to read file at path %#v", c.CLI.ConfigPath)
		}
		loaded.text = string(data)
		loaded.Source = c.CLI.ConfigPath

	case repoErr != nil:
		return nil, repoErr

	default:
		var bc *config.BlobConfig
		if bc, err = c.LoadBlobConfig(repo); err != nil {
			return nil, err
		}

		var id string
		if id, err = bc.Exists(); err != nil {
			return nil, err
		}

		if id != "" {
			if loaded.text, err = bc.ReadString(); err != nil {
				return nil, errors.Wrap(err, "failed to read config out of git")
			}
			loaded.Source = fmt.Sprintf("%s:%s", bc.Ref, bc.BlobPath)
		}
	}

	if loaded.Source == "" {
		loaded.Source = BuiltinDefaults
		loaded.Config = domain.DefaultConfig()
	} else if loaded.Config, err = domain.LoadConfigFromYaml([]byte(loaded.text)); err != nil {
		return nil, errors.Wrapf(err, "bad config in %s", loaded.Source)
	}

	if repoErr == nil {
		if err = config.LoadRefPolicyFromGit(repo.Config().Visit, &loaded.Config.RefPolicy); err != nil {
			return nil, err
		}
	}
	if err = config.LoadRefPolicyFromEnv(c.EnvVisitor(), &loaded.Config.RefPolicy); err != nil {
		return nil, err
	}

	log.Debugf("using config from %s", loaded.Source)
	return loaded, nil
}

// Registry builds the checks for cfg as the current pusher sees them.
func (c *cmdSetup) Registry(cfg *domain.Config) (*checks.Registry, error) {
	ruser, _ := c.LookupEnv("REMOTE_USER")
	return c.NewRegistry(plugins.Options{Config: cfg, RemoteUser: ruser})
}

// SelectChecks picks the checks to run: those named on the command line,
// else those in RECEIVEGATE_CHECKS, else those in the config, else all of
// them.
func (c *cmdSetup) SelectChecks(r *checks.Registry, cfg *domain.Config, args []string) ([]checks.Check, error) {
	names := args
	if len(names) == 0 {
		names = c.CLI.Checks
	}
	if len(names) == 0 {
		names = cfg.Checks
	}
	return r.Select(names...)
}

func (c *cmdSetup) Sayln(cc *cobra.Command, a ...interface{}) (n int, err error) {
	if !c.CLI.Quiet {
		return fmt.Fprintln(cc.ErrOrStderr(), a...)
	}
	return 0, nil
}

// ConfigFlag registers the --config flag with the correct defaults. We use this
// in multiple different subcommands, so it's defined in one place
func (c *cmdSetup) ConfigFlag(cc *cobra.Command) {
	cc.PersistentFlags().StringVarP(&c.CLI.ConfigPath,
		"config", "f", c.CLI.ConfigPath,
		"path to the config file to use (default is to read it out of the git repo)")
}
