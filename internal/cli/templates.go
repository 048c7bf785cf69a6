package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specforge-dev/specforge/internal/bundle"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List available template bundles",
		Long: "List the template bundles this build can generate from, one per " +
			"protocol/role/language triple. Bundles found under --template-dir " +
			"replace embedded ones with the same triple.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("template-dir")
			if err != nil {
				return err
			}
			locator, err := bundle.NewLocator(strings.TrimSpace(dir))
			if err != nil {
				return newUsageError(fmt.Sprintf("templates: %v", err))
			}
			out := cmd.OutOrStdout()
			for _, desc := range locator.List() {
				b, err := locator.Find(desc.Protocol, desc.Role, desc.Language)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-22s %s %s\n", desc, b.Manifest.Name, b.Manifest.Version)
			}
			return nil
		},
	}

	cmd.Flags().String("template-dir", "", "Directory with template bundles overriding the embedded ones")

	return cmd
}
