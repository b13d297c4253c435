// Command gcfit fits generalized cylinders to mesh segments and deforms
// them through their cages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/gcdeform/pkg/mesh"
	"github.com/chazu/gcdeform/pkg/primitive"
	"github.com/chazu/gcdeform/pkg/stl"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gcfit",
	Short: "Fit and deform generalized cylinders on mesh segments",
	Long: `gcfit fits a generalized cylinder (a spine with circular cross-sections)
to each mesh segment, wraps it in a control cage and deforms the segment
as the cylinder is edited. Edits are scripted in a small Lisp.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		primitive.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		for _, v := range cfg.Validate() {
			if v.Severity == primitive.SeverityWarning {
				primitive.Logger().Warn("config", "field", v.Field, "msg", v.Message)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// loadConfig returns the defaults, or the file named by --config.
func loadConfig() (primitive.Config, error) {
	if configPath == "" {
		return primitive.DefaultConfig(), nil
	}
	return primitive.LoadConfig(configPath)
}

// readMesh parses an STL file and names the mesh after it.
func readMesh(path string) (*mesh.Mesh, string, error) {
	m, err := stl.Parse(path)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m.Name = id
	return m, id, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
