package questions

import "testing"

func TestParseNormalizes(t *testing.T) {
	qs := Parse(`[{"question":"  2+2? ","answer":" Four "},{"question":"x"},{"answer":"y"}]`)
	if len(qs) != 1 {
		t.Fatalf("expected 1 usable question, got %d", len(qs))
	}
	if qs[0].Question != "2+2?" || qs[0].Answer != "four" {
		t.Fatalf("unexpected normalization: %+v", qs[0])
	}
}

func TestParseRejectsUnusableInput(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"invalid json":   "{not json",
		"non-array":      `{"question":"q","answer":"a"}`,
		"empty array":    `[]`,
		"missing fields": `[{"question":"only"},{"answer":"only"}]`,
	}
	for name, raw := range cases {
		if qs := Parse(raw); qs != nil {
			t.Fatalf("%s: expected nil, got %+v", name, qs)
		}
	}
}

func TestFromSourcesPrecedence(t *testing.T) {
	primary := `[{"question":"p","answer":"1"}]`
	alias := `[{"question":"a","answer":"2"}]`

	if qs := FromSources(primary, alias); qs[0].Question != "p" {
		t.Fatalf("expected primary to win, got %+v", qs)
	}
	if qs := FromSources("broken", alias); qs[0].Question != "a" {
		t.Fatalf("expected alias fallback, got %+v", qs)
	}

	qs := FromSources("", "")
	if len(qs) != 1 || qs[0].Answer != "soekarno" {
		t.Fatalf("expected built-in default, got %+v", qs)
	}
}
