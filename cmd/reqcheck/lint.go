package main

import (
	"github.com/spf13/cobra"

	"github.com/git-pkgs/requirements/internal/check"
)

func newLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [manifest...]",
		Short: "Check manifest syntax offline",
		Long: "Parse each manifest and report syntax errors, duplicate packages,\n" +
			"unpinned requirements and names that are not in normalized form.\n" +
			"Reads requirements.txt when no manifest is given and stdin for \"-\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifests, err := a.manifests(args)
			if err != nil {
				return err
			}
			reports := make([]*check.Report, len(manifests))
			for i, m := range manifests {
				reports[i] = check.Lint(m)
			}
			return a.finish(reports)
		},
	}
}
