package main

import (
	"os"
	"path"
	"path/filepath"

	"git.twitter.biz/focus/rce/receivegate/cmd"
	"git.twitter.biz/focus/rce/receivegate/internal/common"
)

// When git runs us as one of its hooks, argv[0] is the hook's name. This
// rewrites os.Args as if 'receivegate hook <name> ...' had been given.
func rewriteArgvCmd(args []string, hook string) []string {
	out := []string{filepath.Join(filepath.Dir(args[0]), "receivegate"), "hook", hook}
	return append(out, args[1:]...)
}

func main() {
	switch basename := path.Base(os.Args[0]); basename {
	case "pre-receive", "update":
		os.Args = rewriteArgvCmd(os.Args, basename)
	}

	if err := cmd.RootCmd(nil).Execute(); err != nil {
		common.CheckErr(err)
	}
}
