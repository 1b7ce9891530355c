package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/parent-watch/internal/alert"
	"github.com/sells-group/parent-watch/internal/geo"
)

var distanceCmd = &cobra.Command{
	Use:   "distance <lat1> <lng1> <lat2> <lng2>",
	Short: "Print the great-circle distance between two points in meters",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, b, err := parseCoordinatePair(args)
		if err != nil {
			return err
		}
		d := geo.Distance(a, b)
		if round, _ := cmd.Flags().GetBool("round"); round {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d m\n", alert.RoundMeters(d))
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.2f m\n", d)
		return err
	},
}

func parseCoordinatePair(args []string) (geo.Coordinate, geo.Coordinate, error) {
	vals := make([]float64, len(args))
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return geo.Coordinate{}, geo.Coordinate{}, eris.Wrapf(err, "parse %q", s)
		}
		vals[i] = v
	}
	a := geo.Coordinate{Latitude: vals[0], Longitude: vals[1]}
	b := geo.Coordinate{Latitude: vals[2], Longitude: vals[3]}
	if err := a.Validate(); err != nil {
		return a, b, err
	}
	return a, b, b.Validate()
}

func init() {
	distanceCmd.Flags().Bool("round", false, "round to the nearest meter")
	rootCmd.AddCommand(distanceCmd)
}
