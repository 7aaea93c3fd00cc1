// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"github.com/wavetermdev/shadowtree/pkg/scconfig"
	"github.com/wavetermdev/shadowtree/pkg/scenario"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema [scenario|settings]",
	Short: "print the json schema for scenario files or settings.json",
	Args:  cobra.MaximumNArgs(1),
	// no settings needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runSchemaCmd,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "write to a file instead of stdout")
	rootCmd.AddCommand(schemaCmd)
}

func makeSchema(kind string) (*jsonschema.Schema, error) {
	switch kind {
	case "", "scenario":
		return jsonschema.Reflect(&scenario.Scenario{}), nil
	case "settings":
		return jsonschema.Reflect(&scconfig.SettingsType{}), nil
	}
	return nil, fmt.Errorf("unknown schema %q (want scenario or settings)", kind)
}

func runSchemaCmd(cmd *cobra.Command, args []string) error {
	kind := ""
	if len(args) > 0 {
		kind = args[0]
	}
	schema, err := makeSchema(kind)
	if err != nil {
		return err
	}
	barr, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %v", err)
	}
	if schemaOutput == "" {
		WriteStdout("%s\n", barr)
		return nil
	}
	if err := os.WriteFile(schemaOutput, append(barr, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write schema: %v", err)
	}
	return nil
}
