package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jengzang/mvtypes-go/internal/service"
)

var gpx2csvCmd = &cobra.Command{
	Use:   "gpx2csv SOURCE OUTPUT",
	Short: "Convert a GPX track to a classifier input table",
	Long: `Convert the track points of a GPX 1.0 or 1.1 document to a CSV table with
id, lat, lng, alt and time columns. SOURCE is a file path or an http(s) URL.
".csv" is appended to OUTPUT when missing.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := service.NewConvertService(logger).ConvertSource(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}
