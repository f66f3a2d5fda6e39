package doctree

// DocTree is the root of a parsed book before it is split into numbered lines.
type DocTree struct {
	Title    string     // Book title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading, used as the chapter label (empty for leaf text)
	Text     string     // Text content, one physical line per "\n"
	Page     int        // Source page number when Paged is set
	Paged    bool       // Node holds exactly one physical page of the source
	Children []*DocNode // Subsections
}
