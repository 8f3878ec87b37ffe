package core

import "testing"

func TestKind_StringRoundTrip(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindGUI, "gui"},
		{KindOracle, "oracle"},
		{KindStepping, "stepping"},
		{KindSys, "SYS_EVENT"},
		{KindEmpty, "empty"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.expected {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.expected)
		}
		parsed, err := ParseKind(tt.expected)
		if err != nil || parsed != tt.kind {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", tt.expected, parsed, err, tt.kind)
		}
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("Kind(99).String() = %q, want unknown", Kind(99).String())
	}
}

func TestParseKind_Aliases(t *testing.T) {
	if k, _ := ParseKind("sys"); k != KindSys {
		t.Errorf("ParseKind(sys) = %v, want KindSys", k)
	}
	if _, err := ParseKind("bogus"); err == nil {
		t.Error("ParseKind(bogus) expected error")
	}
}

func TestKind_Scored(t *testing.T) {
	for _, k := range []Kind{KindGUI, KindOracle} {
		if !k.Scored() {
			t.Errorf("%s.Scored() = false, want true", k)
		}
	}
	for _, k := range []Kind{KindStepping, KindSys, KindEmpty, KindUnknown} {
		if k.Scored() {
			t.Errorf("%s.Scored() = true, want false", k)
		}
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryAssertion, "assertion"},
		{ErrCategoryTimeout, "timeout"},
		{ErrCategoryConnection, "connection"},
		{ErrCategoryConfig, "config"},
		{ErrCategoryReachability, "reachability"},
		{ErrCategoryExecution, "execution"},
		{ErrCategorySimilarity, "similarity"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.expected {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.category, got, tt.expected)
		}
	}
}
