// Package lexical flattens serialized rich-text editor state into plain
// text. The reconciler compares document contents by their visible
// text, not by the raw JSON, so formatting-only edits never read as a
// content divergence.
package lexical

import (
	"encoding/json"
	"strconv"
	"strings"
)

// PlainText extracts the visible text from a serialized editor state.
// Content that is not editor JSON passes through unchanged, so callers
// can feed it any string.
func PlainText(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, `{"root":`) {
		return content
	}

	var root Root
	if err := json.Unmarshal([]byte(trimmed), &root); err != nil {
		return content
	}

	var sb strings.Builder
	writeNode(root.Root, &sb, 0)
	return strings.TrimRight(sb.String(), "\n")
}

func writeNode(node Node, sb *strings.Builder, depth int) {
	switch node.Type {
	case "root":
		for _, child := range node.Children {
			writeNode(child, sb, depth)
			sb.WriteString("\n")
		}

	case "paragraph", "heading", "quote":
		writeInline(node, sb)

	case "list":
		writeList(node, sb, depth)

	case "listitem":
		// Handled by writeList; reached only for malformed trees.
		writeInline(node, sb)

	case "table":
		for _, row := range node.Children {
			cells := make([]string, 0, len(row.Children))
			for _, cell := range row.Children {
				var cb strings.Builder
				writeInline(cell, &cb)
				cells = append(cells, strings.TrimSpace(cb.String()))
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteString("\n")
		}

	case "linebreak":
		sb.WriteString("\n")

	case "text":
		sb.WriteString(node.Text)

	default:
		// Unknown containers still contribute their children's text.
		writeInline(node, sb)
	}
}

func writeInline(node Node, sb *strings.Builder) {
	if node.Type == "text" {
		sb.WriteString(node.Text)
		return
	}
	if node.Type == "linebreak" {
		sb.WriteString("\n")
		return
	}
	for _, child := range node.Children {
		writeInline(child, sb)
	}
}

func writeList(list Node, sb *strings.Builder, depth int) {
	number := list.Start
	if number == 0 {
		number = 1
	}
	indent := strings.Repeat("  ", depth)
	for _, item := range list.Children {
		var marker string
		switch list.ListType {
		case "number":
			marker = strconv.Itoa(number) + ". "
			number++
		case "check":
			if item.Checked {
				marker = "[x] "
			} else {
				marker = "[ ] "
			}
		default:
			marker = "- "
		}
		sb.WriteString(indent)
		sb.WriteString(marker)

		for _, child := range item.Children {
			if child.Type == "list" {
				sb.WriteString("\n")
				writeList(child, sb, depth+1)
			} else {
				writeInline(child, sb)
			}
		}
		sb.WriteString("\n")
	}
	// The container loop adds the trailing block newline; strip the
	// duplicate from the last item.
	if s := sb.String(); strings.HasSuffix(s, "\n") {
		sb.Reset()
		sb.WriteString(strings.TrimSuffix(s, "\n"))
	}
}
