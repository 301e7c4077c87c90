package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/metrowaste/zoneplanner/internal/zone"
)

var zoneCmd = &cobra.Command{
	Use:   "zone",
	Short: "Manage collection zones",
}

var (
	zoneCreateName   string
	zoneCreateParent string
	zoneCreateRing   string
)

var zoneCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a zone from a polygon ring",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, reg, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ring, err := parseRing(zoneCreateRing)
		if err != nil {
			return err
		}

		z, err := reg.Create(ctx, zoneCreateName, ring, zoneCreateParent)
		if err != nil {
			return eris.Wrap(err, "create zone")
		}

		zap.L().Info("zone created", zap.String("name", z.Name), zap.String("id", z.ID))
		fmt.Printf("created zone %s (%s)\n", z.Name, z.ID)
		return nil
	},
}

var zoneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List zones in creation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, reg, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPARENT\tCHILDREN\tCREATED")
		for _, name := range reg.List() {
			z := reg.Get(name)
			if z == nil {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				z.Name, z.ParentZone, len(z.SubZones), z.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var zoneRenameCmd = &cobra.Command{
	Use:   "rename OLD NEW",
	Short: "Rename a zone, updating parent and child references",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, reg, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := reg.Rename(ctx, args[0], args[1]); err != nil {
			return eris.Wrap(err, "rename zone")
		}
		fmt.Printf("renamed %s to %s\n", args[0], args[1])
		return nil
	},
}

var zoneDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a zone (fails while it has children)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, reg, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := reg.Delete(ctx, args[0]); err != nil {
			return eris.Wrap(err, "delete zone")
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var zoneShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a zone with its geometry as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, reg, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		z := reg.Get(args[0])
		if z == nil {
			return eris.Wrap(zone.ErrNotFound, args[0])
		}

		g, err := geojson.Marshal(z.Geometry)
		if err != nil {
			return eris.Wrap(err, "encode geometry")
		}

		out := struct {
			*zone.Zone
			Geometry json.RawMessage `json:"geometry"`
		}{Zone: z, Geometry: g}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var (
	zoneImportFile    string
	zoneImportReplace bool
)

// importedZone is one entry of the YAML import file.
type importedZone struct {
	Name   string       `yaml:"name"`
	Parent string       `yaml:"parent"`
	Ring   [][2]float64 `yaml:"ring"`
}

var zoneImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import zones from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(zoneImportFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", zoneImportFile)
		}
		var entries []importedZone
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return eris.Wrapf(err, "parse %s", zoneImportFile)
		}

		st, reg, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		// Validate the batch through a detached registry so a bad entry
		// aborts the import before anything is written.
		staging := zone.NewRegistry(nil)
		if !zoneImportReplace {
			staging.Load(reg.Zones())
		}
		var imported []*zone.Zone
		for _, e := range entries {
			z, err := staging.Create(ctx, e.Name, e.Ring, e.Parent)
			if err != nil {
				return eris.Wrapf(err, "import zone %s", e.Name)
			}
			imported = append(imported, z)
		}

		if zoneImportReplace {
			if err := st.ReplaceZones(ctx, staging.Zones()); err != nil {
				return eris.Wrap(err, "replace zones")
			}
		} else {
			// Parents gain sub-zone entries during staging, so write the
			// full staged set, not just the new zones.
			if _, err := st.UpsertZones(ctx, staging.Zones()); err != nil {
				return eris.Wrap(err, "upsert zones")
			}
		}

		zap.L().Info("zones imported",
			zap.Int("count", len(imported)),
			zap.Bool("replace", zoneImportReplace),
		)
		fmt.Printf("imported %d zones\n", len(imported))
		return nil
	},
}

// parseRing parses "lng,lat lng,lat ..." into a coordinate ring.
func parseRing(s string) ([][2]float64, error) {
	fields := strings.Fields(s)
	ring := make([][2]float64, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) != 2 {
			return nil, eris.Errorf("invalid coordinate %q, want lng,lat", f)
		}
		lng, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid longitude %q", parts[0])
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid latitude %q", parts[1])
		}
		ring = append(ring, [2]float64{lng, lat})
	}
	return ring, nil
}

func init() {
	zoneCreateCmd.Flags().StringVar(&zoneCreateName, "name", "", "zone name (required)")
	zoneCreateCmd.Flags().StringVar(&zoneCreateParent, "parent", "", "parent zone name")
	zoneCreateCmd.Flags().StringVar(&zoneCreateRing, "ring", "", `polygon ring as "lng,lat lng,lat ..." (required)`)
	_ = zoneCreateCmd.MarkFlagRequired("name")
	_ = zoneCreateCmd.MarkFlagRequired("ring")

	zoneImportCmd.Flags().StringVar(&zoneImportFile, "file", "", "YAML file of zones (required)")
	zoneImportCmd.Flags().BoolVar(&zoneImportReplace, "replace", false, "replace all existing zones")
	_ = zoneImportCmd.MarkFlagRequired("file")

	zoneCmd.AddCommand(zoneCreateCmd, zoneListCmd, zoneRenameCmd, zoneDeleteCmd, zoneShowCmd, zoneImportCmd)
	rootCmd.AddCommand(zoneCmd)
}
