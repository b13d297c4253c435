package engine

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(move-curve "a" 5 d :start 2)`,
			expect: `(move_curve "a" 5 d "__kw_start" 2)`,
		},
		{
			name:   "multiple keywords",
			input:  `(move-curve "a" 5 d :start 2 :finish 8)`,
			expect: `(move_curve "a" 5 d "__kw_start" 2 "__kw_finish" 8)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "kebab-case in string preserved",
			input:  `(translate "left-arm" d)`,
			expect: `(translate "left-arm" d)`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(vec3 0 -2 0)`,
			expect: `(vec3 0 -2 0)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func near(a, b r3.Vec) bool {
	return r3.Norm(r3.Sub(a, b)) < 1e-9
}

func TestTranslateBuiltin(t *testing.T) {
	eng := newTestEngine(t)

	rep, evalErrs, err := eng.Evaluate(`(translate "a" (vec3 1 -2 0.5))`)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if len(rep.Edits) != 1 || rep.Edits[0] != (Edit{Op: "translate", Target: "a"}) {
		t.Errorf("unexpected edits %v", rep.Edits)
	}
	got := gcyl(t, eng, "a").SpinePoints()[0]
	if !near(got, r3.Vec{X: 1, Y: -2, Z: 0.5}) {
		t.Errorf("expected first spine point at (1,-2,0.5), got %v", got)
	}
}

func TestMoveCurveRange(t *testing.T) {
	eng := newTestEngine(t)
	before := gcyl(t, eng, "a").SpinePoints()

	source := `
(def d (vec3 1 0 0))
(move-curve "a" 5 d :start 5 :finish 5)
`
	if _, evalErrs, err := eng.Evaluate(source); err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluate: %v %v", err, evalErrs)
	}
	for i, p := range gcyl(t, eng, "a").SpinePoints() {
		if p != before[i] {
			t.Fatalf("empty range moved point %d", i)
		}
	}

	if _, evalErrs, err := eng.Evaluate(`(move-curve "a" 5 (vec3 1 0 0) :start 3 :finish 7)`); err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluate: %v %v", err, evalErrs)
	}
	after := gcyl(t, eng, "a").SpinePoints()
	if after[5].X != 1 {
		t.Errorf("expected cross-section 5 to move by 1, got %v", after[5])
	}
	if after[2] != before[2] || after[7] != before[7] {
		t.Error("cross-sections outside the range moved")
	}
}

func TestMovePointAboutFixedPoint(t *testing.T) {
	eng := newTestEngine(t)

	source := `
(fix-point "a" (vec3 0 0 0))
(move-point "a" (vec3 0 0 10) (vec3 10 0 -10))
`
	if _, evalErrs, err := eng.Evaluate(source); err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluate: %v %v", err, evalErrs)
	}
	pts := gcyl(t, eng, "a").SpinePoints()
	if !near(pts[9], r3.Vec{X: 10}) {
		t.Errorf("expected end at (10,0,0), got %v", pts[9])
	}
	if !near(pts[0], r3.Vec{}) {
		t.Errorf("pinned start moved to %v", pts[0])
	}
}

func TestJointPropagation(t *testing.T) {
	eng := newTestEngine(t)

	source := `
(joint "a" "b" (vec3 0 0 10))
(freeze "a")
(translate "a" (vec3 2 0 0))
(propagate)
`
	rep, evalErrs, err := eng.Evaluate(source)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluate: %v %v", err, evalErrs)
	}
	if rep.Value != "1" {
		t.Errorf("expected one primitive to follow, got %q", rep.Value)
	}
	if last := rep.Edits[len(rep.Edits)-1]; last != (Edit{Op: "propagate", Target: "b"}) {
		t.Errorf("unexpected last edit %v", last)
	}
	if got := gcyl(t, eng, "b").SpinePoints()[9]; !near(got, r3.Vec{X: 2, Z: 20}) {
		t.Errorf("expected b to follow to x=2, got %v", got)
	}
}

func TestSelectionBuiltins(t *testing.T) {
	eng := newTestEngine(t)

	source := `
(select-primitive "b")
(select-part 4)
(grow)
(move-selected (vec3 0 1 14.444444444444445))
`
	rep, evalErrs, err := eng.Evaluate(source)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluate: %v %v", err, evalErrs)
	}
	if len(rep.Edits) != 2 {
		t.Fatalf("expected grow and move-selected edits, got %v", rep.Edits)
	}
	g := gcyl(t, eng, "b")
	if r := g.Cylinder().Radii()[4]; r < 1.29 || r > 1.31 {
		t.Errorf("expected grown radius 1.3, got %v", r)
	}
	if y := g.SpinePoints()[4].Y; y < 1-1e-9 || y > 1+1e-9 {
		t.Errorf("expected selected part at y=1, got %v", y)
	}
}

func TestQueryBuiltins(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name   string
		source string
		expect string
	}{
		{"section count", `(sections "a")`, "10"},
		{"find joints", `(find-joints 0.5)`, "0"},
		{"propagate with nothing frozen", `(propagate)`, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, evalErrs, err := eng.Evaluate(tt.source)
			if err != nil || len(evalErrs) > 0 {
				t.Fatalf("evaluate: %v %v", err, evalErrs)
			}
			if rep.Value != tt.expect {
				t.Errorf("value = %q, want %q", rep.Value, tt.expect)
			}
		})
	}
}

func TestBuiltinArgumentErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"vec3 arity", `(vec3 1 2)`},
		{"vec3 type", `(vec3 1 "two" 3)`},
		{"unknown primitive", `(translate "zz" (vec3 0 0 0))`},
		{"offset not a vec3", `(translate "a" 5)`},
		{"fractional cross-section", `(scale-curve "a" 1.5 2)`},
		{"radius out of range", `(radius "a" 10)`},
		{"move-curve missing offset", `(move-curve "a" 5)`},
		{"grow without selection", `(grow)`},
		{"self joint", `(joint "a" "a" (vec3 0 0 0))`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t)
			rep, evalErrs, err := eng.Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if rep != nil || len(evalErrs) == 0 {
				t.Fatalf("expected eval errors for %s", tt.source)
			}
		})
	}
}
