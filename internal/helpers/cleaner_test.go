package helpers

import (
	"encoding/json"
	"testing"
)

func TestJSONObjects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "plain object", in: `{"a":1}`, want: []string{`{"a":1}`}},
		{name: "fenced", in: "```json\n{\"a\": [1, 2]}\n```", want: []string{`{"a": [1, 2]}`}},
		{name: "prose around", in: `Here is the plan: {"chapters":[{"title":"x"}]} hope it helps`, want: []string{`{"chapters":[{"title":"x"}]}`}},
		{name: "braces inside strings", in: `note {"t":"a } b"} end`, want: []string{`{"t":"a } b"}`}},
		{name: "bracketed preamble", in: "Plan for [Photosynthesis]:\n{\"chapters\":[]}", want: []string{`{"chapters":[]}`}},
		{name: "stray opener", in: `use {braces then {"a":1} and {"b":2}`, want: []string{`{"a":1}`, `{"b":2}`}},
		{name: "bare array", in: `[1, 2]`, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JSONObjects(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %q, got %q", tt.want[i], got[i])
				}
				if !json.Valid([]byte(got[i])) {
					t.Fatalf("extracted segment is not valid JSON: %q", got[i])
				}
			}
		})
	}
}

func TestJSONObjects_NoObject(t *testing.T) {
	if got := JSONObjects("no structure here"); len(got) != 0 {
		t.Fatalf("expected no objects, got %q", got)
	}
	if got := JSONObjects(`{"unterminated": [1, 2`); len(got) != 0 {
		t.Fatalf("expected no objects for unbalanced input, got %q", got)
	}
}

func TestUnwrapCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "```html\n<p>hi</p>\n```", want: "<p>hi</p>"},
		{in: "~~~\nplain\n~~~\n", want: "plain"},
		{in: "<p>not fenced</p>", want: "<p>not fenced</p>"},
		{in: "```a\n1\n```\ntrailing prose", want: "```a\n1\n```\ntrailing prose"},
	}
	for _, tt := range tests {
		if got := UnwrapCodeFence(tt.in); got != tt.want {
			t.Fatalf("expected %q, got %q", tt.want, got)
		}
	}
}
