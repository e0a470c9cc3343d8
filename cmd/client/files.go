package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch PROJECT PATH [OUT]",
	Short: "Download one file from a project",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		api, err := newSDK()
		if err != nil {
			return err
		}

		body, _, _, err := api.Files.Fetch(cmd.Context(), args[0], args[1], "")
		if err != nil {
			return err
		}
		defer body.Close()

		var out io.Writer = os.Stdout
		if len(args) > 2 {
			f, err := os.Create(args[2])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		_, err = io.Copy(out, body)
		return err
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload PROJECT FILE [PATH]",
	Short: "Upload a single file to a project",
	Long:  "Upload one file without a full sync. PATH defaults to the file's base name.",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		project, file := args[0], args[1]
		path := filepath.Base(file)
		if len(args) > 2 {
			path = args[2]
		}

		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()

		api, err := newSDK()
		if err != nil {
			return err
		}

		resp, err := api.Sync.Upload(cmd.Context(), project, path, f)
		if err != nil {
			return err
		}

		fmt.Printf("uploaded %s (%s) as %s/%s\n",
			file, humanize.IBytes(uint64(resp.Entry.Size)), project, resp.Entry.Path)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list PROJECT [PREFIX]",
	Short: "List files in a project",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}

		api, err := newSDK()
		if err != nil {
			return err
		}

		resp, err := api.Files.List(cmd.Context(), args[0], prefix)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tSIZE\tMODIFIED\tDIGEST")
		for _, e := range resp.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.Path, humanize.IBytes(uint64(e.Size)), e.Modified.Format("2006-01-02 15:04"), e.Digest[:12])
		}
		return w.Flush()
	},
}
