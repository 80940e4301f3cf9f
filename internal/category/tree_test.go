package category

import "testing"

func TestChildPath(t *testing.T) {
	cases := []struct {
		parent, slug, want string
	}{
		{"", "fashion", "/fashion"},
		{"/fashion", "editorial", "/fashion/editorial"},
		{"/fashion/editorial", "runway", "/fashion/editorial/runway"},
	}
	for _, c := range cases {
		if got := ChildPath(c.parent, c.slug); got != c.want {
			t.Fatalf("ChildPath(%q, %q) = %q, want %q", c.parent, c.slug, got, c.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Fashion":            "fashion",
		"Editorial  Shoots":  "editorial-shoots",
		"Hair & Makeup":      "hair-makeup",
		"  Trimmed  ":        "trimmed",
		"Runway-2024":        "runway-2024",
		"ÜmlautFree":         "mlautfree",
	}
	for input, want := range cases {
		if got := Slugify(input); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseDeletePolicy(t *testing.T) {
	for input, want := range map[string]DeletePolicy{
		"":         DeleteRestrict,
		"restrict": DeleteRestrict,
		"cascade":  DeleteCascade,
		"move":     DeleteMove,
	} {
		got, err := ParseDeletePolicy(input)
		if err != nil {
			t.Fatalf("ParseDeletePolicy(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseDeletePolicy(%q) = %q, want %q", input, got, want)
		}
	}

	if _, err := ParseDeletePolicy("drop"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
