package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/internal/pathutil"
)

// withApp opens the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd.Context(), opts.configFilePath)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(cliContext(cmd.Context()), a)
}

// withSource is withApp for commands working on one named source.
func withSource(cmd *cobra.Command, opts *globalOptions, name string, fn func(ctx context.Context, src *core.Source) error) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		src, err := a.registry.Get(name)
		if err != nil {
			return err
		}
		return fn(ctx, src)
	})
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func newSourcesCmd(opts *globalOptions) *cobra.Command {
	sourcesCmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tTYPE\tURL\tDESCRIPTION")
				for _, name := range a.registry.Names() {
					info, err := a.registry.Info(name)
					if err != nil {
						return err
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Type, info.URL, info.Description)
				}
				return tw.Flush()
			})
		},
	}

	sourcesCmd.AddCommand(&cobra.Command{
		Use:   "info <name>",
		Short: "Show the settings of one source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				info, err := a.registry.Info(args[0])
				if err != nil {
					return err
				}
				printInfo(cmd.OutOrStdout(), info)
				return nil
			})
		},
	})

	return sourcesCmd
}

func printInfo(w io.Writer, info core.SourceInfo) {
	rows := [][2]string{
		{"Name", info.Name},
		{"Type", info.Type},
		{"Description", info.Description},
		{"URL", info.URL},
		{"Bucket", info.Bucket},
		{"Endpoint", info.Endpoint},
		{"Root path", info.RootPath},
		{"Base dir", info.BaseDir},
		{"Access key", info.AccessKey},
	}
	for _, row := range rows {
		if row[1] != "" {
			fmt.Fprintf(w, "%-12s %s\n", row[0]+":", row[1])
		}
	}
}

func newLsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <source> [path]",
		Short: "List the folders and files under a path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, args[0], func(ctx context.Context, src *core.Source) error {
				entries, err := src.GetContainerList(ctx, optionalArg(args, 1))
				if err != nil {
					return err
				}
				printEntries(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
}

func printEntries(w io.Writer, entries []core.ListingEntry) {
	dir := color.New(color.FgBlue, color.Bold)
	for _, e := range entries {
		if e.Kind == core.KindDir {
			fmt.Fprintf(w, "%s\t%s\n", dir.Sprint(e.Text+"/"), e.Path)
			continue
		}
		mode := ""
		if e.Binary != nil && *e.Binary {
			mode = " (binary)"
		}
		fmt.Fprintf(w, "%s%s\t%s\n", e.Text, mode, e.URL)
	}
}

func newThumbsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "thumbs <source> [path]",
		Short: "List the thumbnails of the files under a path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, args[0], func(ctx context.Context, src *core.Source) error {
				thumbs, err := src.GetObjectsInContainer(ctx, optionalArg(args, 1))
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tIMAGE\tTHUMB\tURL")
				for _, th := range thumbs {
					fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\n",
						th.Name, th.ImageWidth, th.ImageHeight, th.Thumb, th.URL)
				}
				return tw.Flush()
			})
		},
	}
}

func newCatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <source> <path>",
		Short: "Print the contents of a text object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, args[0], func(ctx context.Context, src *core.Source) error {
				obj, err := src.GetObjectContents(ctx, args[1], true)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if obj.Content == "" && obj.Size > 0 {
					fmt.Fprintf(out, "%s: binary object, %s\n", obj.Path, humanize.IBytes(uint64(obj.Size)))
					return nil
				}
				fmt.Fprint(out, obj.Content)
				return nil
			})
		},
	}
}

func newMkdirCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <source> <parent> <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, args[0], func(ctx context.Context, src *core.Source) error {
				if err := src.CreateContainer(ctx, args[2], args[1]); err != nil {
					return err
				}
				done(cmd.OutOrStdout(), "created folder %s", args[2])
				return nil
			})
		},
	}
}

func newRmdirCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <source> <path>",
		Short: "Remove a folder and everything under it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, args[0], func(ctx context.Context, src *core.Source) error {
				if err := src.RemoveContainer(ctx, args[1]); err != nil {
					return err
				}
				done(cmd.OutOrStdout(), "removed folder %s", args[1])
				return nil
			})
		},
	}
}

func newRmCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <source> <path>",
		Short: "Remove a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, args[0], func(ctx context.Context, src *core.Source) error {
				if err := src.RemoveObject(ctx, args[1]); err != nil {
					return err
				}
				done(cmd.OutOrStdout(), "removed %s", args[1])
				return nil
			})
		},
	}
}

func newMvCmd(opts *globalOptions) *cobra.Command {
	var point string

	cmd := &cobra.Command{
		Use:   "mv <source> <from> <to>",
		Short: "Move a file or folder into another folder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, args[0], func(ctx context.Context, src *core.Source) error {
				if err := src.MoveObject(ctx, args[1], args[2], core.MovePoint(point)); err != nil {
					return err
				}
				done(cmd.OutOrStdout(), "moved %s to %s", args[1], args[2])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&point, "point", string(core.MoveAppend), "Where to place the object: append, above or below")
	return cmd
}

func newRenameCmd(opts *globalOptions) *cobra.Command {
	var keepOriginal bool

	cmd := &cobra.Command{
		Use:   "rename <source> <path> <new-name>",
		Short: "Rename a file, or a folder when path ends with /",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSource(cmd, opts, args[0], func(ctx context.Context, src *core.Source) error {
				var err error
				if pathutil.IsDirKey(args[1]) {
					err = src.RenameContainer(ctx, args[1], args[2], core.RenameOptions{KeepOriginal: keepOriginal})
				} else {
					err = src.RenameObject(ctx, args[1], args[2])
				}
				if err != nil {
					return err
				}
				done(cmd.OutOrStdout(), "renamed %s to %s", args[1], args[2])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keepOriginal, "keep-original", false, "Keep the original folder after copying it")
	return cmd
}

func done(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}
