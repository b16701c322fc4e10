package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/vango-dev/formfile/internal/errors"
	"github.com/vango-dev/formfile/pkg/contenttype"
	"github.com/vango-dev/formfile/pkg/upload"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>...",
		Short: "Detect the content type of local files",
		Long: `Detect content types with the same detector the server uses for uploads.

For each file, prints the detected type, the size and the name of the
matching content type constant, if any.

Examples:
  formfile inspect report.csv
  formfile inspect ./samples/*`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectFiles(cmd.OutOrStdout(), afero.NewOsFs(), args)
		},
	}

	return cmd
}

// inspectFiles prints one row per path. Unreadable files are reported in
// place and the first failure is returned after all rows are written.
func inspectFiles(w io.Writer, fs afero.Fs, paths []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTYPE\tSIZE\tCONSTANT")

	var firstErr error
	for _, path := range paths {
		mt, size, err := detect(fs, path)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t%v\n", path, err)
			if firstErr == nil {
				firstErr = errors.New("E123").WithDetail(path + ": " + err.Error()).Wrap(err)
			}
			continue
		}

		name, ok := contenttype.Lookup(mt)
		if !ok {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", path, mt, humanize.Bytes(uint64(size)), name)
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	return firstErr
}

var errIsDir = stderrors.New("is a directory")

func detect(fs afero.Fs, path string) (string, int64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	if info.IsDir() {
		return "", 0, errIsDir
	}

	mt, err := upload.DetectContentType(f)
	if err != nil {
		return "", 0, err
	}
	return mt, info.Size(), nil
}
