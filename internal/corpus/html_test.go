package corpus

import "testing"

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple paragraph",
			input: "<p>Hello world</p>",
			want:  "Hello world",
		},
		{
			name:  "block elements are separated",
			input: "<div><p>Hello</p><p>World</p></div>",
			want:  "Hello World",
		},
		{
			name:  "with attributes",
			input: `<a href="https://example.com">Link text</a>`,
			want:  "Link text",
		},
		{
			name:  "nested inline tags",
			input: "<p><strong>Bold</strong> and <em>italic</em></p>",
			want:  "Bold and italic",
		},
		{
			name:  "script and style dropped",
			input: "<style>p{color:red}</style><p>Shown</p><script>alert(1)</script>",
			want:  "Shown",
		},
		{
			name:  "entities decoded",
			input: "<p>AT&amp;T &lt;3</p>",
			want:  "AT&T <3",
		},
		{
			name:  "line breaks",
			input: "Line 1<br>Line 2",
			want:  "Line 1 Line 2",
		},
		{
			name:  "plain text",
			input: "No HTML here",
			want:  "No HTML here",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
