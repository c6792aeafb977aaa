package domain

import (
	"time"

	"git.twitter.biz/focus/rce/receivegate/internal/validation"
	"github.com/dustin/go-humanize"
	"github.com/icza/dyno"
	"github.com/imdario/mergo"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Patterns selects the files a content check looks at by glob on the
	// path the file has after the push. `**` crosses directories.
	Patterns struct {
		Patterns []string `reg:"patterns" v:"dive,required,glob"`
		// IgnoreCase matches paths without regard to case.
		IgnoreCase bool `reg:"ignorecase"`
	}

	// Files applies to every content check.
	Files struct {
		// SkipVendored leaves alone anything that looks like third party
		// code (vendor/, node_modules/, minified js and so on).
		SkipVendored bool `reg:"skipvendored"`
		// MaxBlobSize is a human readable size ("1 MiB", "500kB"). Blobs
		// above it are not read. Empty or "0" means no limit.
		MaxBlobSize  string `reg:"maxblobsize" v:"omitempty,bytesize"`
		maxBlobBytes uint64
	}

	Branch struct {
		// Pattern is a regular expression the full ref name must match.
		Pattern string `reg:"pattern" v:"required,regexp"`
	}

	// Schema validates the JSON files matching Pattern against the JSON
	// schema stored at Path in the pushed tree.
	Schema struct {
		Pattern string `reg:"pattern" v:"required,glob"`
		Path    string `reg:"path" v:"required"`
	}

	JSON struct {
		Patterns `reg:",squash" yaml:",inline"`
		Schemas  []Schema `reg:"schemas" v:"dive" yaml:",omitempty"`
	}

	ClangFormat struct {
		Patterns `reg:",squash" yaml:",inline"`
		Binary   string `reg:"binary" v:"required"`
		// StyleFile is the path, in the pushed tree, of the style the
		// changed lines must follow.
		StyleFile string        `reg:"stylefile" v:"required"`
		Timeout   time.Duration `reg:"timeout" v:"min=0"`
		// Color renders the suggested change with ANSI colors.
		Color bool `reg:"color"`
	}

	// RefPolicy holds the rules for who may move which refs. Both are off
	// unless turned on here, in git config or in the environment.
	RefPolicy struct {
		// CheckOwnerMatches only lets REMOTE_USER push to refs/heads/<user>/...
		CheckOwnerMatches bool `reg:"checkownermatches"`
		// TagCreateOrUpdateForbidden only allows deleting tags.
		TagCreateOrUpdateForbidden bool `reg:"tagcreateorupdateforbidden"`
	}

	// Config is the hook configuration, read from the `receivegate` key of
	// a yaml document.
	Config struct {
		Version int `reg:"version" v:"required,eq=1"`
		// Checks names the checks to run when none are given on the command
		// line. Empty means all of them.
		Checks      []string    `reg:"checks" v:"dive,required" yaml:",omitempty"`
		Files       Files       `reg:"files"`
		Branch      Branch      `reg:"branch"`
		JSON        JSON        `reg:"json"`
		XML         Patterns    `reg:"xml"`
		YAML        Patterns    `reg:"yaml"`
		TOML        Patterns    `reg:"toml"`
		Shell       Patterns    `reg:"shell"`
		UTF8        Patterns    `reg:"utf8"`
		ClangFormat ClangFormat `reg:"clangformat"`
		RefPolicy   RefPolicy   `reg:"refpolicy"`
	}
)

const DefaultBranchPattern = `^[-a-zA-Z\d_./#]+$`

func globs(exts ...string) (ps []string) {
	for _, e := range exts {
		ps = append(ps, "**."+e)
	}
	return ps
}

// Defaults returns the configuration used when nothing is configured. A
// loaded config is decoded over it, so keys the file leaves out keep these
// values and keys it sets, even to false or 0, replace them.
func Defaults() Config {
	return Config{
		Version: 1,
		Branch:  Branch{Pattern: DefaultBranchPattern},
		JSON:    JSON{Patterns: Patterns{Patterns: globs("json")}},
		XML:     Patterns{Patterns: globs("xml")},
		YAML:    Patterns{Patterns: globs("yaml", "yml")},
		TOML:    Patterns{Patterns: globs("toml")},
		Shell:   Patterns{Patterns: globs("sh", "bash")},
		UTF8: Patterns{
			Patterns:   globs("cpp", "h", "c", "hpp", "hqt", "json", "xml", "txt", "md"),
			IgnoreCase: true,
		},
		ClangFormat: ClangFormat{
			Patterns:  Patterns{Patterns: globs("cpp", "c", "h", "hpp", "hqt")},
			Binary:    "clang-format",
			StyleFile: ".clang-format",
			Timeout:   30 * time.Second,
		},
	}
}

// fallbacks are the settings where an empty value can only mean "not set".
// They are merged into a config after decoding.
func fallbacks() Config {
	d := Defaults()
	return Config{
		Branch: d.Branch,
		ClangFormat: ClangFormat{
			Binary:    d.ClangFormat.Binary,
			StyleFile: d.ClangFormat.StyleFile,
		},
	}
}

// MaxBlobBytes is the parsed Files.MaxBlobSize, zero when unlimited.
func (f *Files) MaxBlobBytes() uint64 { return f.maxBlobBytes }

func loadConfigFromMap(m map[string]interface{}) (cfg *Config, err error) {
	if m, err = dyno.GetMapS(m, "receivegate"); err != nil {
		return nil, errors.Wrap(err, "failed to get 'receivegate' key from config")
	}

	c := Defaults()

	var d *mapstructure.Decoder
	if d, err = mapstructure.NewDecoder(
		&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc()),
			Metadata:         nil,
			Result:           &c,
			WeaklyTypedInput: true,
			ZeroFields:       true,
			TagName:          "reg",
		},
	); err != nil {
		return nil, errors.Wrap(err, "failed to create mapstructure.NewDecoder")
	}

	if err = d.Decode(m); err != nil {
		return nil, errors.Wrap(err, "mapstructure.Decode failed")
	}

	if err = PostUnmarshal(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

func LoadConfigFromYaml(data []byte) (cfg *Config, err error) {
	m := make(map[string]interface{})

	if err = yaml.Unmarshal(data, m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return loadConfigFromMap(m)
}

// PostUnmarshal fills in the empty fallback settings, derives the private
// fields and validates the result. Every way of obtaining a Config goes
// through it.
func PostUnmarshal(c *Config) (err error) {
	if err = mergo.Merge(c, fallbacks()); err != nil {
		return errors.Wrap(err, "failed to merge config defaults")
	}

	if err = validation.NewValidator().Struct(c); err != nil {
		return err
	}

	c.Files.maxBlobBytes = 0
	if c.Files.MaxBlobSize != "" {
		if c.Files.maxBlobBytes, err = humanize.ParseBytes(c.Files.MaxBlobSize); err != nil {
			return errors.Wrapf(err, "invalid files.maxblobsize %#v", c.Files.MaxBlobSize)
		}
	}

	return nil
}

// DefaultConfig is Defaults run through PostUnmarshal.
func DefaultConfig() *Config {
	c := Defaults()
	if err := PostUnmarshal(&c); err != nil {
		panic(errors.Wrap(err, "[BUG] built-in defaults don't validate"))
	}
	return &c
}
