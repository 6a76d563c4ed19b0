package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	pakcore "github.com/meigma/pak/core"
	"github.com/meigma/pak/value"
)

var errBadAssignment = errors.New("metadata must be key=value")

type packOptions struct {
	ignore    []string
	meta      []string
	noSidecar bool
	maxFiles  int
}

var packCmd = &cobra.Command{
	Use:   "pack <dir> <out.pak>",
	Short: "Pack a directory into an archive",
	Long: "Pack every regular file below dir into a new archive. Metadata comes from the\n" +
		"directory's sidecar file, overridden by --meta key=value pairs where value is\n" +
		"parsed as JSON and falls back to a plain string.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadPackOptions(cmd)
		if err != nil {
			return err
		}
		logger := loggerFor(cmd)
		createOpts, err := opts.createOptions(logger)
		if err != nil {
			return err
		}
		if err := pakcore.CreateFile(cmd.Context(), args[0], args[1], createOpts...); err != nil {
			return err
		}
		src, err := pakcore.OpenFile(args[1])
		if err != nil {
			return err
		}
		defer src.Close()
		cmd.Printf("packed %s assets into %s (%s)\n",
			humanize.Comma(int64(src.Len())), args[1], humanize.IBytes(uint64(src.Size()))) //nolint:gosec // sizes are non-negative
		return nil
	},
}

func init() {
	packCmd.Flags().StringSlice("ignore", nil, "Skip assets matching these patterns, such as /**/*.tmp")
	packCmd.Flags().StringArray("meta", nil, "Set a metadata key, as key=value (repeatable)")
	packCmd.Flags().Bool("no-sidecar", false, "Treat metadata files as ordinary assets")
	packCmd.Flags().Int("max-files", 0, "Refuse directories with more files (0 uses the default, -1 disables the limit)")
	rootCmd.AddCommand(packCmd)
}

func loadPackOptions(cmd *cobra.Command) (packOptions, error) {
	var opts packOptions
	var err error
	if opts.ignore, err = cmd.Flags().GetStringSlice("ignore"); err != nil {
		return opts, err
	}
	if opts.meta, err = cmd.Flags().GetStringArray("meta"); err != nil {
		return opts, err
	}
	if opts.noSidecar, err = cmd.Flags().GetBool("no-sidecar"); err != nil {
		return opts, err
	}
	if opts.maxFiles, err = cmd.Flags().GetInt("max-files"); err != nil {
		return opts, err
	}
	return opts, nil
}

func (o packOptions) createOptions(logger *slog.Logger) ([]pakcore.CreateOption, error) {
	meta, err := parseMetaAssignments(o.meta)
	if err != nil {
		return nil, err
	}
	opts := []pakcore.CreateOption{
		pakcore.CreateWithLogger(logger),
		pakcore.CreateWithMaxFiles(o.maxFiles),
		pakcore.CreateWithProgress(func(e pakcore.ProgressEvent) {
			logger.Debug("pack", "stage", e.Stage, "path", e.Path, "files", e.FilesDone, "total", e.FilesTotal)
		}),
	}
	if len(o.ignore) > 0 {
		opts = append(opts, pakcore.CreateWithIgnore(o.ignore...))
	}
	if len(meta) > 0 {
		opts = append(opts, pakcore.CreateWithMetadata(meta))
	}
	if o.noSidecar {
		opts = append(opts, pakcore.CreateWithMetadataFiles())
	}
	return opts, nil
}

// parseMetaAssignments turns key=value pairs into a metadata object.
// Values that are not valid JSON are stored as strings.
func parseMetaAssignments(pairs []string) (value.Object, error) {
	out := value.Object{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", errBadAssignment, pair)
		}
		v, err := value.ParseJSON([]byte(raw))
		if err != nil {
			v = value.String(raw)
		}
		out[key] = v
	}
	return out, nil
}
