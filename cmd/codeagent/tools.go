package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"codeagent/internal/tools"

	"github.com/kaptinlin/jsonrepair"
	"github.com/spf13/cobra"
)

func newToolsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke the registered tools",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List the enabled tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := a.container.Tools()
			if err != nil {
				return err
			}
			defs := registry.List()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}
			return printToolTable(cmd, defs)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print full definitions as JSON")

	call := &cobra.Command{
		Use:   "call <name> [json-arguments]",
		Short: "Invoke one tool directly and print its result",
		Example: `  codeagent tools call list_files '{"path": "."}'
  codeagent tools call execute_command '{"command": "go version"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := a.container.Tools()
			if err != nil {
				return err
			}
			var raw string
			if len(args) == 2 {
				raw = args[1]
			}
			arguments, err := parseToolArguments(raw)
			if err != nil {
				return err
			}
			res := registry.Invoke(cmd.Context(), tools.Call{ID: "cli", Name: args[0], Arguments: arguments})
			fmt.Fprintln(cmd.OutOrStdout(), res.Text())
			if res.Failure != nil {
				return &exitCodeError{code: 2, err: fmt.Errorf("tool %s failed (%s)", args[0], res.Failure.Kind)}
			}
			return nil
		},
	}

	cmd.AddCommand(list, call)
	return cmd
}

func printToolTable(cmd *cobra.Command, defs []tools.Definition) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMETERS\tDESCRIPTION")
	for _, def := range defs {
		params := make([]string, 0, len(def.Parameters.Properties))
		for name := range def.Parameters.Properties {
			params = append(params, name)
		}
		sort.Strings(params)
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, strings.Join(params, ","), firstLine(def.Description))
	}
	return w.Flush()
}

// parseToolArguments accepts a JSON object, repairing sloppy quoting.
func parseToolArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil && args != nil {
		return args, nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil || args == nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object, got %q", raw)
	}
	return args, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
