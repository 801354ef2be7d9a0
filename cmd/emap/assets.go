package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/celerix-dev/emap-store/pkg/schema"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

func (c *cli) assetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "assets",
		Short:   "List the asset catalog of the active workspace",
		GroupID: "assets",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.client.ListAssets(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing assets: %w", err)
			}
			if c.jsonOutput {
				return c.printJSON(cmd.OutOrStdout(), list)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE")
			for _, a := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Name, a.MimeType)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) putAssetCmd() *cobra.Command {
	var id, name, mimeType string
	cmd := &cobra.Command{
		Use:     "put-asset <file>",
		Short:   "Upload a file as an asset of the active workspace",
		GroupID: "assets",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if id == "" {
				id = filepath.Base(args[0])
			}
			if mimeType == "" {
				mimeType = mimetype.Detect(data).String()
			}
			asset := schema.AssetRecord{ID: id, Name: name, MimeType: mimeType}
			if err := c.client.PutAsset(cmd.Context(), asset, data); err != nil {
				return fmt.Errorf("uploading %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%d bytes, %s)\n", id, len(data), mimeType)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "asset id (default: file base name)")
	cmd.Flags().StringVar(&name, "name", "", "display name (default: asset id)")
	cmd.Flags().StringVar(&mimeType, "type", "", "MIME type (default: detected from content)")
	return cmd
}

func (c *cli) getAssetCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "get-asset <id>",
		Short:   "Download an asset blob",
		GroupID: "assets",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _, err := c.client.GetAssetBytes(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("downloading %s: %w", args[0], err)
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (c *cli) rmAssetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm-asset <id>",
		Short:   "Remove an asset from the catalog (the blob is kept)",
		GroupID: "assets",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client.DeleteAssetRecord(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("removing %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "import <path>",
		Short:   "Import a file the daemon can read into the asset directory",
		GroupID: "assets",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			name, err := c.client.ImportAsset(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("importing %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", name)
			return nil
		},
	}
}

func (c *cli) lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls <path>",
		Short:   "List a directory as seen by the daemon",
		GroupID: "assets",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.client.ListDirectory(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("listing %s: %w", args[0], err)
			}
			if c.jsonOutput {
				return c.printJSON(cmd.OutOrStdout(), entries)
			}
			for _, e := range entries {
				if e.IsDir {
					fmt.Fprintf(cmd.OutOrStdout(), "%s/\n", e.Name)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", e.Name, e.Size)
				}
			}
			return nil
		},
	}
}
