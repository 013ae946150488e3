package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/upb/emergency-console/rbac"
)

type roleRow struct {
	Role         rbac.Role `json:"role"`
	Superset     bool      `json:"superset"`
	Permissions  []string  `json:"permissions"`
	PathPrefixes []string  `json:"path_prefixes"`
}

func newRolesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Print the role table and dashboard path prefixes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := roleRows()
			out := cmd.OutOrStdout()

			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			case "text":
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ROLE\tPERMISSIONS\tPATHS")
				for _, row := range rows {
					fmt.Fprintf(w, "%s\t%s\t%s\n", row.Role,
						strings.Join(row.Permissions, ","),
						strings.Join(row.PathPrefixes, ","))
				}
				return w.Flush()
			default:
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func roleRows() []roleRow {
	roles := rbac.AllRoles()
	rows := make([]roleRow, 0, len(roles))
	for _, role := range roles {
		row := roleRow{
			Role:        role,
			Superset:    role.IsSuperset(),
			Permissions: rbac.Strings(rbac.Permissions(role)),
		}
		if row.Superset {
			row.PathPrefixes = []string{"*"}
		} else {
			row.PathPrefixes = rbac.AllowedPrefixes(role)
		}
		rows = append(rows, row)
	}
	return rows
}
