package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/gcdeform/pkg/engine"
	"github.com/chazu/gcdeform/pkg/primitive"
	"github.com/chazu/gcdeform/pkg/session"
	"github.com/chazu/gcdeform/pkg/stl"
)

var edit struct {
	states string
	out    string
	joints float64
}

var editCmd = &cobra.Command{
	Use:   "edit [script] [segment.stl...]",
	Short: "Run an edit script over fitted segments",
	Long: `Each segment becomes a primitive named after its file. A segment is
restored from <states>/<name>.gcs when that file exists and fitted
otherwise. Segments closer than --joints are joined before the script
runs. With --out, every deformed segment and its state are written there.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEdit,
}

func init() {
	f := editCmd.Flags()
	f.StringVar(&edit.states, "states", "", "directory of saved primitive states")
	f.StringVarP(&edit.out, "out", "o", "", "directory for deformed segments and states")
	f.Float64Var(&edit.joints, "joints", 0, "join segments closer than this distance")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	script, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	s := session.New(cfg)
	for _, path := range args[1:] {
		if err := addSegment(s, path); err != nil {
			return err
		}
	}
	if edit.joints > 0 {
		n := s.FindJoints(edit.joints)
		primitive.Logger().Info("joints found", "count", n)
	}

	rep, evalErrs, err := engine.NewEngine(s).Evaluate(string(script))
	if err != nil {
		return err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], e.Error())
		}
		return fmt.Errorf("script failed with %d errors", len(evalErrs))
	}

	out := cmd.OutOrStdout()
	for _, e := range rep.Edits {
		fmt.Fprintf(out, "%-14s %s\n", e.Op, e.Target)
	}
	if rep.Value != "" {
		fmt.Fprintf(out, "=> %s\n", rep.Value)
	}
	if edit.out == "" {
		return nil
	}
	return writeSession(s, edit.out)
}

func addSegment(s *session.Session, path string) error {
	m, id, err := readMesh(path)
	if err != nil {
		return err
	}
	if edit.states != "" {
		f, err := os.Open(filepath.Join(edit.states, id+".gcs"))
		switch {
		case err == nil:
			defer f.Close()
			g, err := primitive.Load(f, m, r3.Vec{}, 1, id, s.Config())
			if err != nil {
				return err
			}
			return s.Add(g)
		case !errors.Is(err, os.ErrNotExist):
			return err
		}
	}
	_, err = s.Fit(id, m)
	return err
}

func writeSession(s *session.Session, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, id := range s.IDs() {
		p, err := s.Primitive(id)
		if err != nil {
			return err
		}
		g, ok := p.(*primitive.GCylinder)
		if !ok {
			continue
		}
		if m := g.Mesh(); m != nil {
			if err := stl.WriteFile(filepath.Join(dir, id+".stl"), m); err != nil {
				return err
			}
		}
		if err := saveState(filepath.Join(dir, id+".gcs"), g); err != nil {
			return err
		}
	}
	return nil
}
