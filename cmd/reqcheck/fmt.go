package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/requirements/internal/manifest"
)

func newFmtCmd(a *app) *cobra.Command {
	var write, list bool

	cmd := &cobra.Command{
		Use:   "fmt [manifest...]",
		Short: "Rewrite manifests in canonical form",
		Long: "Print each manifest with normalized package names and compact\n" +
			"specifiers. Comments, blank lines and invalid lines are kept.\n" +
			"Includes are not rewritten.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{defaultManifest}
			}
			changed := false
			for _, path := range args {
				src, err := a.readSource(path)
				if err != nil {
					return usageError(err)
				}
				m, err := manifest.Parse(bytes.NewReader(src), path)
				if err != nil {
					return usageError(err)
				}
				var out bytes.Buffer
				if err := manifest.Format(&out, m); err != nil {
					return err
				}

				differs := !bytes.Equal(src, out.Bytes())
				changed = changed || differs

				switch {
				case list:
					if differs {
						_, _ = fmt.Fprintln(a.stdout, path)
					}
				case write && path != "-":
					if !differs {
						continue
					}
					if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
						return fmt.Errorf("writing %s: %w", path, err)
					}
					a.log.Info("formatted manifest", "path", path)
				default:
					if _, err := a.stdout.Write(out.Bytes()); err != nil {
						return err
					}
				}
			}
			if list && changed {
				return &exitError{code: exitFindings}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list files whose formatting differs and exit 1")
	return cmd
}

func (a *app) readSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(path)
}
