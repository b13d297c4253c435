package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/gcdeform/pkg/mesh"
	"github.com/chazu/gcdeform/pkg/primitive"
	"github.com/chazu/gcdeform/pkg/stl"
)

var load struct {
	mesh      string
	translate []float64
	scale     float64
	out       string
}

var loadCmd = &cobra.Command{
	Use:   "load [state]",
	Short: "Restore a saved primitive, optionally bound to a segment",
	Long: `Reads a state written by "fit --state" or "edit --out". Spine points are
translated and then scaled; radii are scaled. With --mesh the segment is
bound to the restored cage, and --out writes it back after binding.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	f := loadCmd.Flags()
	f.StringVar(&load.mesh, "mesh", "", "segment STL to bind")
	f.Float64SliceVar(&load.translate, "translate", []float64{0, 0, 0}, "translation x,y,z applied before scaling")
	f.Float64Var(&load.scale, "scale", 1, "uniform scale")
	f.StringVarP(&load.out, "out", "o", "", "write the bound segment to this STL file")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	if len(load.translate) != 3 {
		return fmt.Errorf("--translate takes three components, got %d", len(load.translate))
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var (
		m  *mesh.Mesh
		id = "state"
	)
	if load.mesh != "" {
		if m, id, err = readMesh(load.mesh); err != nil {
			return err
		}
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	defer f.Close()
	tr := r3.Vec{X: load.translate[0], Y: load.translate[1], Z: load.translate[2]}
	g, err := primitive.Load(f, m, tr, load.scale, id, cfg)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), g)

	if load.out != "" && m != nil {
		return stl.WriteFile(load.out, g.Mesh())
	}
	return nil
}
