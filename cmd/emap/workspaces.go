package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List workspaces, newest first",
		GroupID: "workspaces",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.client.ListWorkspaces(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing workspaces: %w", err)
			}
			if c.jsonOutput {
				return c.printJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No workspaces.")
				return nil
			}

			active, _ := c.client.Active(cmd.Context())
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tCREATED")
			for _, ws := range list {
				marker := ""
				if ws.ID == active.ID {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, ws.ID, ws.Name, ws.CreatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "create <name>",
		Short:   "Create a workspace and make it active",
		GroupID: "workspaces",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := c.client.Create(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("creating workspace: %w", err)
			}
			if c.jsonOutput {
				return c.printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", rec.Name, rec.ID)
			return nil
		},
	}
}

func (c *cli) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "load <id>",
		Short:   "Make a workspace active",
		GroupID: "workspaces",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client.Load(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("loading workspace: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Short:   "Delete a workspace and its data file",
		GroupID: "workspaces",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting workspace: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) activeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "active",
		Short:   "Show the active workspace",
		GroupID: "workspaces",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := c.client.Active(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading active workspace: %w", err)
			}
			if c.jsonOutput {
				return c.printJSON(cmd.OutOrStdout(), active)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", active.ID, active.Name)
			return nil
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Print a value from the active workspace",
		GroupID: "data",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, err := c.client.GetValue(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	}
}

func (c *cli) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Store a value in the active workspace",
		GroupID: "data",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client.PutValue(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("writing %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}
