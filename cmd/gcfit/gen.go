package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/chazu/gcdeform/pkg/kernel"
	"github.com/chazu/gcdeform/pkg/kernel/sdfx"
	"github.com/chazu/gcdeform/pkg/mesh"
	"github.com/chazu/gcdeform/pkg/stl"
	"github.com/chazu/gcdeform/pkg/tessellate"
)

var gen struct {
	shape  string
	radius float64
	height float64
	bend   float64
	angle  float64
	rings  int
	sides  int
	cells  int
}

var genCmd = &cobra.Command{
	Use:   "gen [out.stl]",
	Short: "Write a synthetic segment to an STL file",
	Long: `Shapes:
  tube      capped straight tube along +Z
  bent      capped tube bent in the XZ plane (--bend, --angle in degrees)
  cylinder  solid cylinder meshed by the SDF kernel
  capsule   cylinder with spherical ends, meshed by the SDF kernel`,
	Args: cobra.ExactArgs(1),
	RunE: runGen,
}

func init() {
	f := genCmd.Flags()
	f.StringVar(&gen.shape, "shape", "tube", "tube, bent, cylinder or capsule")
	f.Float64Var(&gen.radius, "radius", 1, "tube radius")
	f.Float64Var(&gen.height, "height", 10, "tube length")
	f.Float64Var(&gen.bend, "bend", 10, "bend radius of a bent tube")
	f.Float64Var(&gen.angle, "angle", 90, "bend angle of a bent tube in degrees")
	f.IntVar(&gen.rings, "rings", 41, "rings along a swept tube")
	f.IntVar(&gen.sides, "sides", 32, "vertices per ring of a swept tube")
	f.IntVar(&gen.cells, "cells", sdfx.DefaultMeshCells, "marching cubes resolution of kernel shapes")
	rootCmd.AddCommand(genCmd)
}

func runGen(cmd *cobra.Command, args []string) error {
	m, err := generate()
	if err != nil {
		return err
	}
	if err := stl.WriteFile(args[0], m); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d vertices, %d triangles, volume %.4f\n",
		args[0], m.VertexCount(), m.TriangleCount(), m.Volume())
	return nil
}

func generate() (*mesh.Mesh, error) {
	switch gen.shape {
	case "tube":
		return tessellate.Tube(gen.radius, gen.height, gen.rings, gen.sides)
	case "bent":
		return tessellate.BentTube(gen.radius, gen.bend, gen.angle*math.Pi/180, gen.rings, gen.sides)
	case "cylinder", "capsule":
		k := &sdfx.SdfxKernel{Cells: gen.cells}
		return k.ToMesh(solid(k))
	default:
		return nil, fmt.Errorf("unknown shape %q", gen.shape)
	}
}

// solid builds a kernel shape spanning z in [0, height].
func solid(k kernel.Kernel) kernel.Solid {
	s := k.Cylinder(gen.height, gen.radius)
	if gen.shape == "capsule" {
		s = k.Union(s, k.Translate(k.Sphere(gen.radius), 0, 0, gen.height/2))
		s = k.Union(s, k.Translate(k.Sphere(gen.radius), 0, 0, -gen.height/2))
	}
	return k.Translate(s, 0, 0, gen.height/2)
}
