package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/requirements/internal/core"
)

func newPurlCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purl [manifest...]",
		Short: "Print a package URL for every index-backed requirement",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifests, err := a.manifests(args)
			if err != nil {
				return err
			}
			seen := make(map[string]bool)
			for _, m := range manifests {
				for _, r := range m.Requirements() {
					if r.URL != "" {
						a.log.Debug("skipping direct reference", "name", r.Name, "url", r.URL)
						continue
					}
					p := core.RequirementPURL(r)
					if seen[p] {
						continue
					}
					seen[p] = true
					if _, err := fmt.Fprintln(a.stdout, p); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}
