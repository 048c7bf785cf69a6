package cli

import (
    "fmt"

    "github.com/spf13/cobra"
)

// Execute runs the specforge CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
    cmd := &cobra.Command{
        Use:           "specforge",
        Short:         "Generate protocol servers and clients from OpenAPI contracts",
        Long:          "specforge scaffolds MCP and other protocol projects from OpenAPI/Swagger contracts using embedded or user-supplied template bundles.",
        SilenceErrors: true,
        SilenceUsage:  true,
        RunE: func(cmd *cobra.Command, args []string) error {
            return cmd.Help()
        },
    }

    // Convert Cobra flag errors (like unknown flags) into friendly usage errors
    // that also show the command's help text.
    flagErr := func(c *cobra.Command, err error) error {
        return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
    }
    cmd.SetFlagErrorFunc(flagErr)

    cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
    cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

    for _, sub := range []*cobra.Command{newGenerateCmd(), newTemplatesCmd(), newInitCmd(), newVersionCmd()} {
        sub.SetFlagErrorFunc(flagErr)
        cmd.AddCommand(sub)
    }

    return cmd
}
