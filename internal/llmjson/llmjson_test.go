package llmjson

import "testing"

func TestStrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n ", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Strip(tc.in); got != tc.want {
				t.Errorf("Strip(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	var arr []string
	if err := Unmarshal("```json\n[\"one\", \"two\"]\n```", &arr); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(arr) != 2 || arr[0] != "one" {
		t.Errorf("got %v, want [one two]", arr)
	}

	if err := Unmarshal("not json at all", &arr); err == nil {
		t.Error("want error for malformed content")
	}
}
