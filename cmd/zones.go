package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/parent-watch/internal/geo"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Inspect and convert zone definitions",
}

// -- zones list --

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured zones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		classifier, err := loadClassifier()
		if err != nil {
			return err
		}
		formatZonesList(cmd.OutOrStdout(), classifier.Zones())
		return nil
	},
}

// -- zones geojson --

var zonesGeoJSONCmd = &cobra.Command{
	Use:   "geojson",
	Short: "Export configured zones as a GeoJSON FeatureCollection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		classifier, err := loadClassifier()
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		w := cmd.OutOrStdout()
		if out != "" {
			f, err := os.Create(out)
			if err != nil {
				return eris.Wrapf(err, "create %s", out)
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(geo.ZoneCollection(classifier.Zones())), "encode geojson")
	},
}

// -- zones import --

var zonesImportCmd = &cobra.Command{
	Use:   "import <file.shp>",
	Short: "Convert a point shapefile into a zones YAML file",
	Long:  "Reads NAME, KIND and optional RADIUS attributes from a point shapefile and writes the zones in the format accepted by zones_file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, err := geo.ReadShapefileZones(args[0])
		if err != nil {
			return err
		}
		if _, err := geo.ZonesFromSpecs(specs); err != nil {
			return err
		}

		data, err := geo.MarshalZonesYAML(specs)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", out)
		}
		zap.L().Info("zones imported", zap.Int("zones", len(specs)), zap.String("out", out))
		return nil
	},
}

func loadClassifier() (*geo.Classifier, error) {
	if err := cfg.Validate("zones"); err != nil {
		return nil, err
	}
	return cfg.Classifier()
}

// formatZonesList writes a tabular list of zones to out.
func formatZonesList(out io.Writer, zones []geo.Zone) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tKIND\tLATITUDE\tLONGITUDE\tTHRESHOLD_M")
	for _, z := range zones {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.6f\t%.6f\t%.0f\n",
			z.Name, z.Kind, z.Center.Latitude, z.Center.Longitude, z.ThresholdMeters)
	}
	_ = w.Flush()
}

func init() {
	zonesGeoJSONCmd.Flags().String("out", "", "write to file instead of stdout")
	zonesImportCmd.Flags().String("out", "", "write YAML to file instead of stdout")

	zonesCmd.AddCommand(zonesListCmd)
	zonesCmd.AddCommand(zonesGeoJSONCmd)
	zonesCmd.AddCommand(zonesImportCmd)
	rootCmd.AddCommand(zonesCmd)
}
