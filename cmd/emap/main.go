package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/celerix-dev/emap-store/pkg/sdk"
	"github.com/spf13/cobra"
)

// cli carries the state shared by every subcommand.
type cli struct {
	addr       string
	jsonOutput bool
	client     sdk.WorkspaceService
	closer     io.Closer
}

func defaultAddr() string {
	if s := os.Getenv("EMAP_ADDR"); s != "" {
		return s
	}
	return "127.0.0.1:7002"
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "emap <command>",
		Short:         "CLI client for the Emap workspace daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			client := sdk.NewClient(c.addr)
			c.client, c.closer = client, client
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.closer != nil {
				c.closer.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.addr, "addr", defaultAddr(), "daemon HTTP address")
	rootCmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "workspaces", Title: "Workspaces:"},
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "assets", Title: "Assets:"},
	)

	rootCmd.AddCommand(
		c.listCmd(), c.createCmd(), c.loadCmd(), c.deleteCmd(), c.activeCmd(),
		c.getCmd(), c.setCmd(),
		c.assetsCmd(), c.putAssetCmd(), c.getAssetCmd(), c.rmAssetCmd(), c.importCmd(), c.lsCmd(),
	)
	return rootCmd
}

func (c *cli) printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
