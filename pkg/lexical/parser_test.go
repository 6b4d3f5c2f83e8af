package lexical

import (
	"testing"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "non-editor content passes through",
			content: "just a plain string",
			want:    "just a plain string",
		},
		{
			name:    "malformed editor json passes through",
			content: `{"root": not valid`,
			want:    `{"root": not valid`,
		},
		{
			name:    "paragraph text",
			content: `{"root":{"type":"root","children":[{"type":"paragraph","children":[{"type":"text","text":"hello "},{"type":"text","text":"world"}]}]}}`,
			want:    "hello world",
		},
		{
			name:    "heading and paragraph",
			content: `{"root":{"type":"root","children":[{"type":"heading","tag":"h1","children":[{"type":"text","text":"Title"}]},{"type":"paragraph","children":[{"type":"text","text":"body"}]}]}}`,
			want:    "Title\nbody",
		},
		{
			name:    "bullet list",
			content: `{"root":{"type":"root","children":[{"type":"list","listType":"bullet","children":[{"type":"listitem","children":[{"type":"text","text":"one"}]},{"type":"listitem","children":[{"type":"text","text":"two"}]}]}]}}`,
			want:    "- one\n- two",
		},
		{
			name:    "numbered list respects start",
			content: `{"root":{"type":"root","children":[{"type":"list","listType":"number","start":3,"children":[{"type":"listitem","children":[{"type":"text","text":"third"}]},{"type":"listitem","children":[{"type":"text","text":"fourth"}]}]}]}}`,
			want:    "3. third\n4. fourth",
		},
		{
			name:    "checklist",
			content: `{"root":{"type":"root","children":[{"type":"list","listType":"check","children":[{"type":"listitem","checked":true,"children":[{"type":"text","text":"done"}]},{"type":"listitem","children":[{"type":"text","text":"todo"}]}]}]}}`,
			want:    "[x] done\n[ ] todo",
		},
		{
			name:    "link contributes its text",
			content: `{"root":{"type":"root","children":[{"type":"paragraph","children":[{"type":"link","url":"https://example.com","children":[{"type":"text","text":"a link"}]}]}]}}`,
			want:    "a link",
		},
		{
			name:    "linebreak inside paragraph",
			content: `{"root":{"type":"root","children":[{"type":"paragraph","children":[{"type":"text","text":"first"},{"type":"linebreak"},{"type":"text","text":"second"}]}]}}`,
			want:    "first\nsecond",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.content); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}
