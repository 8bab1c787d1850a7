package binding

import "testing"

func TestInterpolate(t *testing.T) {
	data := map[string]any{
		"article": map[string]any{
			"words": 833,
			"tags":  []any{"news", "harbour"},
		},
		"names": []string{"CAPE TOWN"},
	}
	cases := []struct {
		in, want string
	}{
		{"target ${article.words} words", "target 833 words"},
		{"${ article.tags[1] }", "harbour"},
		{"${names[0]}", "CAPE TOWN"},
		{"${missing.path} stays", "${missing.path} stays"},
		{"${article.tags[9]}", "${article.tags[9]}"},
		{"no placeholders", "no placeholders"},
	}
	for _, c := range cases {
		if got := Interpolate(c.in, data); got != c.want {
			t.Fatalf("Interpolate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := Interpolate("${x}", nil); got != "${x}" {
		t.Fatalf("nil data should leave placeholders, got %q", got)
	}
}

func TestRenderReportsMissing(t *testing.T) {
	out, err := Render("${a} and ${b}", map[string]string{"a": "1"})
	if err == nil {
		t.Fatalf("expected error for unresolved placeholder, got %q", out)
	}
	out, err = Render("${a}", map[string]int{"a": 5})
	if err != nil || out != "5" {
		t.Fatalf("Render = %q, %v", out, err)
	}
}
