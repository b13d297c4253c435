package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/gcdeform/pkg/primitive"
	"github.com/chazu/gcdeform/pkg/stl"
)

var fitOut struct {
	cage  string
	state string
}

var fitCmd = &cobra.Command{
	Use:   "fit [segment.stl]",
	Short: "Fit a generalized cylinder to a segment and report it",
	Args:  cobra.ExactArgs(1),
	RunE:  runFit,
}

func init() {
	fitCmd.Flags().StringVar(&fitOut.cage, "cage", "", "write the control cage to this STL file")
	fitCmd.Flags().StringVar(&fitOut.state, "state", "", "write the fitted state to this file")
	rootCmd.AddCommand(fitCmd)
}

func runFit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, id, err := readMesh(args[0])
	if err != nil {
		return err
	}
	g, err := primitive.NewFitted(id, m, cfg)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), g)

	if fitOut.cage != "" {
		if err := stl.WriteFile(fitOut.cage, g.Cage().Mesh()); err != nil {
			return err
		}
	}
	if fitOut.state != "" {
		if err := saveState(fitOut.state, g); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, g *primitive.GCylinder) {
	c := g.Cylinder()
	fmt.Fprintf(w, "Primitive %s (%s, fitted %t)\n", g.ID(), g.Kind(), g.Fitted())
	fmt.Fprintf(w, "  Sections:   %d\n", c.Len())
	fmt.Fprintf(w, "  Length:     %.6f\n", c.Length())
	fmt.Fprintf(w, "  Volume:     %.6f\n", g.Volume())
	fmt.Fprintf(w, "  Cage:       %d points\n", len(g.Points()))
	for i, s := range c.Sections {
		fmt.Fprintf(w, "  %3d  %s  r=%.4f\n", i, formatVec(s.Frame.Point), s.Circle.Radius)
	}
}

func saveState(path string, g *primitive.GCylinder) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	if err := g.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
