// Package plugins holds the checks receivegate ships with.
package plugins

import (
	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
)

type Options struct {
	Config *domain.Config
	// RemoteUser is the authenticated pusher, needed by the owner check.
	RemoteUser string
}

func newContentCheck(name, label string, p domain.Patterns, files domain.Files, fn validateFn) (*contentCheck, error) {
	ff, err := newFileFilter(p, files)
	if err != nil {
		return nil, err
	}
	return &contentCheck{name: name, label: label, filter: ff, validate: fn}, nil
}

func ignoringEntry(fn func([]byte) error) validateFn {
	return func(_ *checks.Context, _ *git.DiffEntry, data []byte) error { return fn(data) }
}

// NewRegistry builds every known check from opts. Checks run in the order
// they are registered here: ref name rules first, then file contents.
func NewRegistry(opts Options) (*checks.Registry, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = domain.DefaultConfig()
	}

	var list []checks.Check

	branch, err := newBranchCheck(cfg.Branch)
	if err != nil {
		return nil, err
	}
	list = append(list,
		branch,
		&tagCheck{enabled: cfg.RefPolicy.TagCreateOrUpdateForbidden},
		&ownerCheck{enabled: cfg.RefPolicy.CheckOwnerMatches, remoteUser: opts.RemoteUser},
	)

	utf8, err := newContentCheck("utf8", "UTF-8", cfg.UTF8, cfg.Files, ignoringEntry(validateUTF8))
	if err != nil {
		return nil, err
	}
	json, err := newJSONCheck(cfg.JSON, cfg.Files)
	if err != nil {
		return nil, err
	}
	list = append(list, utf8, json)

	syntaxChecks := []struct {
		name, label string
		patterns    domain.Patterns
		fn          validateFn
	}{
		{"xml", "XML", cfg.XML, ignoringEntry(validateXML)},
		{"yaml", "YAML", cfg.YAML, ignoringEntry(validateYAML)},
		{"toml", "TOML", cfg.TOML, ignoringEntry(validateTOML)},
		{"shell", "shell", cfg.Shell, func(_ *checks.Context, e *git.DiffEntry, data []byte) error {
			return validateShell(e.Path, data)
		}},
	}

	for _, sc := range syntaxChecks {
		c, err := newContentCheck(sc.name, sc.label, sc.patterns, cfg.Files, sc.fn)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}

	cf, err := newClangFormatCheck(cfg.ClangFormat, cfg.Files)
	if err != nil {
		return nil, err
	}
	list = append(list, cf)

	r := checks.NewRegistry()
	for _, c := range list {
		if err = r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}
