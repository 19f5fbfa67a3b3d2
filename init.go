package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/facetcrawl/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		Long: `Init writes ` + config.LocalConfigFile + ` with every setting at its default value:
the start URL, the facet split order, fetch limits and the sink.

Examples:
  # Create facetcrawl.yaml in the current directory
  facetcrawl init

  # Write the per-user config instead
  facetcrawl init -o ~/.config/facetcrawl/config.yaml

  # Overwrite an existing file
  facetcrawl init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.LocalConfigFile, "Output file path")
	cmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if err := config.WriteConfigFile(outputPath, config.NewConfig(), force); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			return fmt.Errorf("%w (use -f to overwrite)", err)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", outputPath)
	return nil
}
