package commands

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"start":     "/start",
		"/Reset":    "/reset",
		"  /exit ":  "/exit",
		"/":         "",
		"":          "",
		"two words": "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
