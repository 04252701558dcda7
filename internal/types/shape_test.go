package types

import (
	"errors"
	"testing"
)

func TestShapeRank(t *testing.T) {
	if r := Unranked().Rank(); r != -1 {
		t.Errorf("unranked rank = %d, want -1", r)
	}
	if r := Scalar().Rank(); r != 0 {
		t.Errorf("scalar rank = %d, want 0", r)
	}
	if r := MakeShapeFromInts(2, 3).Rank(); r != 2 {
		t.Errorf("rank = %d, want 2", r)
	}
}

func TestShapeNumElements(t *testing.T) {
	if n := MakeShapeFromInts(2, 3, 4).NumElements(); n != 24 {
		t.Errorf("NumElements = %d, want 24", n)
	}
	if n := MakeShape(2, DimUnknown).NumElements(); n != -1 {
		t.Errorf("partial NumElements = %d, want -1", n)
	}
	if n := Unranked().NumElements(); n != -1 {
		t.Errorf("unranked NumElements = %d, want -1", n)
	}
	if n := Scalar().NumElements(); n != 1 {
		t.Errorf("scalar NumElements = %d, want 1", n)
	}
}

func TestShapeUnify(t *testing.T) {
	tests := []struct {
		name string
		a, b Shape
		want Shape
		err  bool
	}{
		{"unranked both", Unranked(), Unranked(), Unranked(), false},
		{"unranked left", Unranked(), MakeShapeFromInts(2, 3), MakeShapeFromInts(2, 3), false},
		{"unranked right", MakeShapeFromInts(2, 3), Unranked(), MakeShapeFromInts(2, 3), false},
		{"fill unknown", MakeShape(2, DimUnknown), MakeShape(DimUnknown, 3), MakeShapeFromInts(2, 3), false},
		{"agree", MakeShapeFromInts(4), MakeShapeFromInts(4), MakeShapeFromInts(4), false},
		{"rank conflict", MakeShapeFromInts(2), MakeShapeFromInts(2, 3), Shape{}, true},
		{"axis conflict", MakeShapeFromInts(2, 3), MakeShapeFromInts(2, 4), Shape{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Unify(tt.b)
			if tt.err {
				if err == nil {
					t.Fatalf("Unify(%s, %s) succeeded, want error", tt.a, tt.b)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unify(%s, %s): %v", tt.a, tt.b, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Unify(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// Unification must not depend on argument order and must be a no-op when
// repeated with the same information.
func TestShapeUnifyCommutativeIdempotent(t *testing.T) {
	shapes := []Shape{
		Unranked(),
		Scalar(),
		MakeShapeFromInts(2, 3),
		MakeShape(2, DimUnknown),
		MakeShape(DimUnknown, 3),
	}
	for _, a := range shapes {
		for _, b := range shapes {
			ab, errAB := a.Unify(b)
			ba, errBA := b.Unify(a)
			if (errAB == nil) != (errBA == nil) {
				t.Fatalf("Unify(%s, %s) err asymmetry: %v vs %v", a, b, errAB, errBA)
			}
			if errAB != nil {
				continue
			}
			if !ab.Equal(ba) {
				t.Errorf("Unify(%s, %s) = %s but reversed = %s", a, b, ab, ba)
			}
			again, err := ab.Unify(ab)
			if err != nil || !again.Equal(ab) {
				t.Errorf("Unify(%s, %s) not idempotent: %s, %v", a, b, again, err)
			}
		}
	}
}

func TestShapeUnifyErrorTypes(t *testing.T) {
	_, err := MakeShapeFromInts(2).Unify(MakeShapeFromInts(2, 3))
	var rankErr *RankConflictError
	if !errors.As(err, &rankErr) {
		t.Errorf("want RankConflictError, got %v", err)
	}

	_, err = MakeShapeFromInts(2, 3).Unify(MakeShapeFromInts(2, 5))
	var axisErr *AxisConflictError
	if !errors.As(err, &axisErr) {
		t.Fatalf("want AxisConflictError, got %v", err)
	}
	if axisErr.Axis != 1 {
		t.Errorf("conflict axis = %d, want 1", axisErr.Axis)
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name string
		a, b Shape
		want Shape
		err  bool
	}{
		{"same", MakeShapeFromInts(2, 3), MakeShapeFromInts(2, 3), MakeShapeFromInts(2, 3), false},
		{"scalar", MakeShapeFromInts(2, 3), Scalar(), MakeShapeFromInts(2, 3), false},
		{"ones expand", MakeShapeFromInts(2, 1), MakeShapeFromInts(1, 3), MakeShapeFromInts(2, 3), false},
		{"rank extend", MakeShapeFromInts(4, 2, 3), MakeShapeFromInts(3), MakeShapeFromInts(4, 2, 3), false},
		{"unknown vs definite", MakeShape(DimUnknown, 3), MakeShapeFromInts(2, 3), MakeShapeFromInts(2, 3), false},
		{"unknown vs unknown", MakeShape(DimUnknown), MakeShape(DimUnknown), MakeShape(DimUnknown), false},
		{"unranked", Unranked(), MakeShapeFromInts(2), Unranked(), false},
		{"mismatch", MakeShapeFromInts(2, 3), MakeShapeFromInts(2, 4), Shape{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BroadcastShapes(tt.a, tt.b)
			if tt.err {
				if err == nil {
					t.Fatalf("BroadcastShapes(%s, %s) succeeded, want error", tt.a, tt.b)
				}
				return
			}
			if err != nil {
				t.Fatalf("BroadcastShapes(%s, %s): %v", tt.a, tt.b, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("BroadcastShapes(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestShapeString(t *testing.T) {
	if s := MakeShape(1, DimUnknown, 3).String(); s != "[1,?,3]" {
		t.Errorf("String = %q", s)
	}
	if s := Unranked().String(); s != "?" {
		t.Errorf("unranked String = %q", s)
	}
	if s := Scalar().String(); s != "[]" {
		t.Errorf("scalar String = %q", s)
	}
}
