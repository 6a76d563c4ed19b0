package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/pak"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <source> <dest>",
	Short: "Extract assets into a directory",
	Long:  "Extract the assets of a source below dest, mirroring their paths. Existing files are kept unless --overwrite is set.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openSource(cmd, args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		opts, err := loadUnpackOptions(cmd)
		if err != nil {
			return err
		}
		res, err := pak.Extract(cmd.Context(), src, args[1], opts...)
		if err != nil {
			return err
		}
		cmd.Printf("unpacked %s assets (%s), skipped %s\n",
			humanize.Comma(int64(res.Written)), humanize.IBytes(uint64(res.Bytes)), humanize.Comma(int64(res.Skipped))) //nolint:gosec // sizes are non-negative
		return nil
	},
}

func init() {
	unpackCmd.Flags().StringSlice("glob", nil, "Only extract assets matching these patterns")
	unpackCmd.Flags().Bool("overwrite", false, "Replace existing files")
	unpackCmd.Flags().Int("workers", 0, "Parallel workers (0 uses GOMAXPROCS, -1 is serial)")
	rootCmd.AddCommand(unpackCmd)
}

func loadUnpackOptions(cmd *cobra.Command) ([]pak.ExtractOption, error) {
	globs, err := cmd.Flags().GetStringSlice("glob")
	if err != nil {
		return nil, err
	}
	overwrite, err := cmd.Flags().GetBool("overwrite")
	if err != nil {
		return nil, err
	}
	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}
	logger := loggerFor(cmd)
	return []pak.ExtractOption{
		pak.ExtractWithGlob(globs...),
		pak.ExtractWithOverwrite(overwrite),
		pak.ExtractWithWorkers(workers),
		pak.ExtractWithLogger(logger),
		pak.ExtractWithProgress(func(e pak.ProgressEvent) {
			logger.Debug("unpack", "path", e.Path, "files", e.FilesDone, "total", e.FilesTotal)
		}),
	}, nil
}
