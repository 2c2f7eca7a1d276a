package helpers

import "testing"

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "think block", in: "<think>abc</think>Hello", want: "Hello"},
		{name: "case insensitive", in: "<THINKING>x</THINKING> World", want: "World"},
		{name: "reasoning multiline", in: "<reasoning>\nstep 1\nstep 2\n</reasoning>\n\nAnswer", want: "Answer"},
		{name: "first closing tag wins", in: "<think>a</think>keep<think>b</think>", want: "keep"},
		{name: "unmatched opening", in: "<think>Hello there", want: "Hello there"},
		{name: "stray closing", in: "Result</thinking>  ", want: "Result"},
		{name: "no tags", in: "  plain text \n", want: "plain text"},
		{name: "empty", in: "", want: ""},
		{name: "other tags untouched", in: "<p>keep</p>", want: "<p>keep</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripReasoning(tt.in); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStripReasoning_Idempotent(t *testing.T) {
	inputs := []string{
		"<think>abc</think>Hello",
		"<thi<think>nk>x</think>",
		"<think>a<think>b</think>c</think>d",
		"<reasoning attr=\"1\">r</reasoning> <Think>open",
		"  spaced  ",
		"</think></reasoning></thinking>",
		"text <thinking>\n\n</thinking>\n<think>",
	}
	for _, in := range inputs {
		once := StripReasoning(in)
		if twice := StripReasoning(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
