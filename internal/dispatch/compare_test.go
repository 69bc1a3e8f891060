package dispatch

import (
	"reflect"
	"testing"

	"github.com/nerrad567/lumen-core/internal/transport"
)

func boolPtr(b bool) *bool    { return &b }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }

func TestCompareExactPower(t *testing.T) {
	desired := transport.DesiredState{Power: boolPtr(true)}

	on := Compare(desired, &transport.ObservedState{Power: boolPtr(true)}, DefaultTolerances())
	if !on.FullMatch() {
		t.Errorf("expected match, got mismatched %v", on.Mismatched)
	}

	off := Compare(desired, &transport.ObservedState{Power: boolPtr(false)}, DefaultTolerances())
	if len(off.Mismatched) != 1 || off.Mismatched[0] != transport.FieldPower {
		t.Errorf("expected power mismatch, got %v", off.Mismatched)
	}
}

func TestCompareBrightnessBoundary(t *testing.T) {
	tol := Tolerances{Brightness: 5, ColorChannel: 10, ColorTemp: 100}

	tests := []struct {
		name      string
		desired   int
		observed  int
		wantMatch bool
	}{
		{"exact", 50, 50, true},
		{"below within", 50, 46, true},
		{"above within", 50, 54, true},
		{"at tolerance low", 50, 45, true}, // |50-45| = 5 <= 5, inclusive bound
		{"at tolerance high", 50, 55, true},
		{"beyond low", 50, 44, false},
		{"beyond high", 50, 56, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := Compare(
				transport.DesiredState{Brightness: intPtr(tt.desired)},
				&transport.ObservedState{Brightness: intPtr(tt.observed)},
				tol,
			)
			if cmp.FullMatch() != tt.wantMatch {
				t.Errorf("desired %d observed %d: match=%v, want %v",
					tt.desired, tt.observed, cmp.FullMatch(), tt.wantMatch)
			}
		})
	}
}

func TestCompareToleranceSymmetric(t *testing.T) {
	tol := DefaultTolerances()

	a := Compare(
		transport.DesiredState{Brightness: intPtr(45)},
		&transport.ObservedState{Brightness: intPtr(50)},
		tol,
	)
	b := Compare(
		transport.DesiredState{Brightness: intPtr(50)},
		&transport.ObservedState{Brightness: intPtr(45)},
		tol,
	)
	if a.FullMatch() != b.FullMatch() {
		t.Error("tolerance comparison must be symmetric")
	}
}

func TestCompareReflexive(t *testing.T) {
	// A state compared against itself always matches
	desired := transport.DesiredState{
		Power:      boolPtr(true),
		Brightness: intPtr(73),
		Color:      &transport.RGB{R: 12, G: 200, B: 99},
		ColorTempK: intPtr(4000),
	}
	observed := &transport.ObservedState{
		Power:      boolPtr(true),
		Brightness: intPtr(73),
		Color:      &transport.RGB{R: 12, G: 200, B: 99},
		ColorTempK: intPtr(4000),
	}

	cmp := Compare(desired, observed, DefaultTolerances())
	if !cmp.FullMatch() {
		t.Errorf("self-comparison must match, got mismatched %v", cmp.Mismatched)
	}
}

func TestCompareColorChannelsIndependent(t *testing.T) {
	tol := Tolerances{Brightness: 5, ColorChannel: 10, ColorTemp: 100}
	desired := transport.DesiredState{Color: &transport.RGB{R: 255, G: 0, B: 0}}

	within := Compare(desired, &transport.ObservedState{Color: &transport.RGB{R: 245, G: 10, B: 10}}, tol)
	if !within.FullMatch() {
		t.Errorf("expected match within per-channel tolerance, got %v", within.Mismatched)
	}

	// One channel out of tolerance fails the whole field
	oneOut := Compare(desired, &transport.ObservedState{Color: &transport.RGB{R: 255, G: 11, B: 0}}, tol)
	if oneOut.FullMatch() {
		t.Error("expected mismatch when one channel exceeds tolerance")
	}
}

func TestCompareAbsentFieldsMismatch(t *testing.T) {
	// Fields the device omitted must never count as matched
	desired := transport.DesiredState{
		Power:      boolPtr(true),
		Brightness: intPtr(50),
	}
	observed := &transport.ObservedState{Power: boolPtr(true)} // brightness omitted

	cmp := Compare(desired, observed, DefaultTolerances())
	if len(cmp.Mismatched) != 1 || cmp.Mismatched[0] != transport.FieldBrightness {
		t.Errorf("expected brightness mismatched, got %v", cmp.Mismatched)
	}
	if len(cmp.Matched) != 1 || cmp.Matched[0] != transport.FieldPower {
		t.Errorf("expected power matched, got %v", cmp.Matched)
	}
}

func TestCompareNilObserved(t *testing.T) {
	desired := transport.DesiredState{Power: boolPtr(true)}
	cmp := Compare(desired, nil, DefaultTolerances())
	if cmp.FullMatch() {
		t.Error("nil observation must not match")
	}
}

func TestCompareSceneNeverMatches(t *testing.T) {
	desired := transport.DesiredState{Scene: int64Ptr(3853)}
	cmp := Compare(desired, &transport.ObservedState{Power: boolPtr(true)}, DefaultTolerances())
	if len(cmp.Mismatched) != 1 || cmp.Mismatched[0] != transport.FieldScene {
		t.Errorf("expected scene mismatched, got %v", cmp.Mismatched)
	}
}

func TestCompareDeterministic(t *testing.T) {
	desired := transport.DesiredState{
		Power:      boolPtr(false),
		Brightness: intPtr(30),
		Color:      &transport.RGB{R: 1, G: 2, B: 3},
	}
	observed := &transport.ObservedState{
		Power:      boolPtr(true),
		Brightness: intPtr(31),
	}

	first := Compare(desired, observed, DefaultTolerances())
	for i := 0; i < 10; i++ {
		again := Compare(desired, observed, DefaultTolerances())
		if !reflect.DeepEqual(first, again) {
			t.Fatal("comparison must be deterministic for identical inputs")
		}
	}
}
