package plugins

import (
	"git.twitter.biz/focus/rce/receivegate/internal/checks"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

type (
	schemaRule struct {
		match glob.Glob
		path  string
	}

	// jsonCheck requires every selected file to hold a single JSON value,
	// and files matched by a schema rule to also validate against the
	// schema stored in the pushed tree.
	jsonCheck struct {
		*contentCheck
		schemas []schemaRule
	}

	// schemaCache holds the schemas loaded while evaluating one update.
	schemaCache map[string]*gojsonschema.Schema
)

var _ checks.Check = (*jsonCheck)(nil)

func newJSONCheck(cfg domain.JSON, files domain.Files) (*jsonCheck, error) {
	ff, err := newFileFilter(cfg.Patterns, files)
	if err != nil {
		return nil, err
	}

	c := &jsonCheck{contentCheck: &contentCheck{name: "json", label: "JSON", filter: ff}}

	for _, s := range cfg.Schemas {
		g, err := ff.compile(s.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "bad schema pattern %#v", s.Pattern)
		}
		c.schemas = append(c.schemas, schemaRule{match: g, path: s.Path})
	}

	return c, nil
}

func (c *jsonCheck) Evaluate(ctx *checks.Context) (*checks.Outcome, error) {
	cache := make(schemaCache)

	bad, err := c.filter.forEachBlob(ctx, func(e *git.DiffEntry, data []byte) error {
		if err := validateJSON(data); err != nil {
			return err
		}
		return c.validateSchemas(ctx, cache, e, data)
	})
	if err != nil {
		return nil, err
	}
	if len(bad) > 0 {
		return checks.Fail(bad), nil
	}
	return checks.Pass(nil), nil
}

func (c *jsonCheck) validateSchemas(ctx *checks.Context, cache schemaCache, e *git.DiffEntry, data []byte) error {
	for _, rule := range c.schemas {
		if !rule.match.Match(c.filter.fold(e.Path)) {
			continue
		}

		schema, err := cache.load(ctx, rule.path)
		if err != nil {
			return err
		}

		res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return errors.Wrapf(err, "validating against %s", rule.path)
		}
		if !res.Valid() {
			msgs := make([]string, 0, len(res.Errors()))
			for _, re := range res.Errors() {
				msgs = append(msgs, re.String())
			}
			return describeSchemaErrors(msgs)
		}
	}
	return nil
}

func (sc schemaCache) load(ctx *checks.Context, path string) (*gojsonschema.Schema, error) {
	if s, ok := sc[path]; ok {
		return s, nil
	}

	data, ok, err := ctx.Backend.FileAt(ctx.Update.NewRev, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("schema %s is not in the pushed tree", path)
	}

	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "schema %s is invalid", path)
	}

	sc[path] = s
	return s, nil
}
