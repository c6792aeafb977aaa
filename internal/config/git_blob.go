package config

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"git.twitter.biz/focus/rce/receivegate/internal/common"
	"git.twitter.biz/focus/rce/receivegate/internal/git"
	"git.twitter.biz/focus/rce/receivegate/internal/validation"
)

// The hook configuration can live in the repository it guards, as a file
// on a specially named ref. The ref is usually an orphan branch so it
// doesn't share history with the code being pushed, and pushing to it is
// how admins change the configuration.

type (
	RefConfig struct {
		// the name of the ref holding the config
		Ref string `reg:"ref" v:"required,startswith=refs/"`
		// The path relative to the root of Ref that is read out of the
		// repository using git cat-file.
		BlobPath string `reg:"blobpath" v:"required"`
	}
)

const (
	AdminPrefix    = "receivegate.admin."
	AdminEnvPrefix = "RECEIVEGATE_ADMIN_"
)

var DefaultRefConfig = RefConfig{
	Ref:      "refs/admin/receivegate",
	BlobPath: "receivegate.yaml",
}

// unmarshals the field assigned to k from the value v. if k is not known, it's ignored.
func (rc *RefConfig) setFieldFromStrings(k, v string) error {
	switch k {
	case "ref":
		rc.Ref = v
	case "blobpath":
		rc.BlobPath = v
	}
	return nil
}

func loadRefConfig(visitor common.KeyValueVisitor, rc *RefConfig) (err error) {
	if err = visitor(rc.setFieldFromStrings); err != nil {
		return err
	}

	if err = validation.NewValidator().Struct(rc); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	return nil
}

// LoadRefConfigFromGit reads receivegate.admin.* keys from git config.
func LoadRefConfigFromGit(gitConfigVisitor common.KeyValueVisitor, rc *RefConfig) error {
	return loadRefConfig(common.NewPrefixVisitor(gitConfigVisitor, AdminPrefix), rc)
}

// LoadRefConfigFromEnv reads RECEIVEGATE_ADMIN_* variables.
func LoadRefConfigFromEnv(envVisitor common.KeyValueVisitor, rc *RefConfig) error {
	return loadRefConfig(common.NewPrefixVisitor(envVisitor, AdminEnvPrefix), rc)
}

var debugTemplate = template.Must(
	template.New("RefConfigString").Parse(`
RefConfig {
	Ref:      "{{.Ref}}",
	BlobPath: "{{.BlobPath}}",
}
`),
)

func (rc *RefConfig) String() string {
	var buf bytes.Buffer
	err := debugTemplate.Execute(&buf, rc)
	if err != nil {
		log.Fatalf("could not execute RefConfig.String template: %#v", err)
	}
	return buf.String()
}

func (rc *RefConfig) BlobConfig(repo *git.Repo) (bc *BlobConfig) {
	return NewBlobConfig(rc, repo)
}

type (
	// BlobConfig (besides being a bad name) is what uses the RefConfig to
	// read the config out of the git repo.
	BlobConfig struct {
		*RefConfig
		*git.Repo
	}
)

func NewBlobConfig(rc *RefConfig, repo *git.Repo) (cu *BlobConfig) {
	return &BlobConfig{rc, repo}
}

// Exists returns the commit the config ref points at, or "" when the ref
// isn't there.
func (c *BlobConfig) Exists() (id string, err error) {
	var cr git.CommandResult

	if cr, err = c.Run("show-ref", "--", c.Ref); err != nil {
		if cef, ok := err.(*git.CommandFailedError); ok && cef.ExitCode == 1 && cef.Stderr == "" {
			return "", nil
		}
		return "", errors.Wrap(err, "show-ref failed")
	}

	lines := cr.OutputLines()
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Fields(lines[0])[0], nil
}

// ReadAll returns the contents of the configured blob at the configured ref
// as a byte slice
func (c *BlobConfig) ReadAll() (data []byte, err error) {
	return c.ReadPath(c.BlobPath)
}

// ReadString returns the contents of the configured blob at the configured ref
// as a string.
func (c *BlobConfig) ReadString() (s string, err error) {
	data, err := c.ReadAll()
	if err != nil {
		return "", err
	}
	return string(data), err
}

// ReadPath returns the contents of path at the configured ref
func (c *BlobConfig) ReadPath(path string) (data []byte, err error) {
	return c.Repo.CatFileBlob(c.Ref, path)
}
