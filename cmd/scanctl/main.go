// Package main provides scanctl, a command-line client for the scanner
// server.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

const defaultAddr = "http://localhost:8000"

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	rootCmd := &cobra.Command{
		Use:           "scanctl",
		Short:         "Control a running study scanner",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", envOr("SCANNER_ADDR", defaultAddr), "scanner server address")

	c := func() *client { return newClient(addr) }

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show capture status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st statusResponse
			if err := c().get(cmd.Context(), "/api/status", &st); err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	})

	for _, action := range []struct{ name, short string }{
		{"start", "Start automated capture"},
		{"stop", "Stop automated capture"},
		{"pause", "Pause capture"},
		{"resume", "Resume paused capture"},
		{"retry", "Retry after an extraction failure"},
	} {
		rootCmd.AddCommand(&cobra.Command{
			Use:   action.name,
			Short: action.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				var st statusResponse
				if err := c().post(cmd.Context(), "/api/automation/"+action.name, nil, &st); err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), st)
				return nil
			},
		})
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "copy",
		Short: "Copy the last extracted text to the clipboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp textResponse
			if err := c().get(cmd.Context(), "/api/text", &resp); err != nil {
				return err
			}
			if resp.Text == "" {
				return fmt.Errorf("no extracted text yet")
			}
			if err := writeClipboard(resp.Text); err != nil {
				return fmt.Errorf("failed to copy text: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %d characters\n", len([]rune(resp.Text)))
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "camera [DEVICE]",
		Short: "Switch the capture device (no argument selects the default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device := ""
			if len(args) == 1 {
				device = args[0]
			}
			var st statusResponse
			if err := c().post(cmd.Context(), "/api/camera", map[string]string{"device": device}, &st); err != nil {
				return err
			}
			if device == "" {
				device = "default device"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "camera switched to %s\n", device)
			return nil
		},
	})

	rootCmd.AddCommand(newSaveCmd(c))
	rootCmd.AddCommand(newNotesCmd(c))
	return rootCmd
}

func newSaveCmd(c func() *client) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the last extracted text as a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var n note
			if err := c().post(cmd.Context(), "/api/notes", map[string]string{"title": title}, &n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s %q\n", n.ID, n.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "note title (default: timestamped)")
	return cmd
}

func newNotesCmd(c func() *client) *cobra.Command {
	notesCmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage saved notes",
	}

	notesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var list []note
			if err := c().get(cmd.Context(), "/api/notes", &list); err != nil {
				return err
			}
			printNotes(cmd.OutOrStdout(), list)
			return nil
		},
	})

	notesCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c().delete(cmd.Context(), "/api/notes/"+args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	})
	return notesCmd
}

func printStatus(w io.Writer, st statusResponse) {
	line := st.Status
	if st.Running {
		line += " (running)"
	}
	fmt.Fprintln(w, line)
	if st.Error != "" {
		fmt.Fprintf(w, "error: %s\n", st.Error)
	}
}

func printNotes(w io.Writer, list []note) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no notes")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTITLE\tPREVIEW")
	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.CreatedAt.Local().Format(time.DateTime), n.Title, preview(n.Text, 40))
	}
	_ = tw.Flush()
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
