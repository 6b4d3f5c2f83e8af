package lexical

// Root is the top-level structure of a serialized editor state.
type Root struct {
	Root Node `json:"root"`
}

// Node is any node in the editor tree. Only the fields the text
// extractor consumes are mapped; unknown fields are ignored.
type Node struct {
	Type     string `json:"type"`
	Children []Node `json:"children,omitempty"`

	// Text specific
	Text string `json:"text,omitempty"`

	// Link specific
	URL string `json:"url,omitempty"`

	// List specific
	ListType string `json:"listType,omitempty"` // check, bullet, number
	Start    int    `json:"start,omitempty"`

	// ListItem specific
	Checked bool `json:"checked,omitempty"`

	// Heading specific
	Tag string `json:"tag,omitempty"` // h1..h6
}
