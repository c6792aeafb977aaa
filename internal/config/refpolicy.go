package config

import (
	"strconv"

	"git.twitter.biz/focus/rce/receivegate/internal/common"
	"git.twitter.biz/focus/rce/receivegate/internal/domain"
	"github.com/pkg/errors"
)

const RefPolicyGitConfigPrefix = "receivegate.refpolicy."

func parseBoolSetting(k, v string) (b bool, err error) {
	if b, err = strconv.ParseBool(v); err != nil {
		return false, errors.Errorf("%#v must be a boolean but was %#v", k, v)
	}
	return b, nil
}

// LoadRefPolicyFromGit overrides rp with receivegate.refPolicy.* keys from
// git config. Key names are case-insensitive.
func LoadRefPolicyFromGit(gitConfigVisitor common.KeyValueVisitor, rp *domain.RefPolicy) error {
	return common.NewPrefixVisitor(gitConfigVisitor, RefPolicyGitConfigPrefix)(
		func(k, v string) (err error) {
			switch k {
			case "checkownermatches":
				rp.CheckOwnerMatches, err = parseBoolSetting(RefPolicyGitConfigPrefix+k, v)
			case "tagcreateorupdateforbidden":
				rp.TagCreateOrUpdateForbidden, err = parseBoolSetting(RefPolicyGitConfigPrefix+k, v)
			}
			return err
		})
}

// LoadRefPolicyFromEnv overrides rp with the RECEIVEGATE_CHECK_OWNER_MATCHES
// and RECEIVEGATE_TAG_CREATE_OR_UPDATE_FORBIDDEN variables.
func LoadRefPolicyFromEnv(envVisitor common.KeyValueVisitor, rp *domain.RefPolicy) error {
	return envVisitor(func(k, v string) (err error) {
		switch k {
		case "RECEIVEGATE_CHECK_OWNER_MATCHES":
			rp.CheckOwnerMatches, err = parseBoolSetting(k, v)
		case "RECEIVEGATE_TAG_CREATE_OR_UPDATE_FORBIDDEN":
			rp.TagCreateOrUpdateForbidden, err = parseBoolSetting(k, v)
		}
		return err
	})
}
