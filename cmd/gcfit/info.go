package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Display mesh statistics of an STL segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	m, id, err := readMesh(args[0])
	if err != nil {
		return err
	}
	lo, hi := m.Bounds()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Segment: %s\n", id)
	fmt.Fprintf(out, "  Vertices:  %d\n", m.VertexCount())
	fmt.Fprintf(out, "  Triangles: %d\n", m.TriangleCount())
	fmt.Fprintf(out, "  Closed:    %t\n", m.IsClosed())
	fmt.Fprintf(out, "  Area:      %.6f\n", m.Area())
	fmt.Fprintf(out, "  Volume:    %.6f\n", m.Volume())
	fmt.Fprintf(out, "  Min:       %s\n", formatVec(lo))
	fmt.Fprintf(out, "  Max:       %s\n", formatVec(hi))
	fmt.Fprintf(out, "  Centroid:  %s\n", formatVec(m.Centroid()))
	return nil
}

func formatVec(v r3.Vec) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}
