package main

import (
	"github.com/spf13/cobra"

	"github.com/git-pkgs/requirements/internal/check"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [manifest...]",
		Short: "Lint manifests and resolve every package against the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifests, err := a.manifests(args)
			if err != nil {
				return err
			}

			idx, err := a.index()
			if err != nil {
				return usageError(err)
			}
			checker := a.checker(idx)

			ctx := cmd.Context()
			reports := make([]*check.Report, 0, len(manifests))
			for _, m := range manifests {
				a.log.Info("checking manifest", "path", m.Path, "index", idx.Name(), "url", a.cfg.BaseURL())
				r, err := checker.Check(ctx, m)
				if err != nil {
					return &exitError{code: exitUsage, err: err}
				}
				reports = append(reports, r)
			}
			return a.finish(reports)
		},
	}
}
