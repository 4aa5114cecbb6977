package sanitizer

import "golang.org/x/net/html"

// removeEmptyNodesBottomUp strips empty elements in post-order, so
// nested empty containers collapse innermost first.
func removeEmptyNodesBottomUp(node *html.Node) {
	if node == nil {
		return
	}

	// Snapshot the child list, removal mutates the sibling links.
	var children []*html.Node
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}

	for _, child := range children {
		removeEmptyNodesBottomUp(child)
	}

	if node.Type == html.ElementNode && isEmptyNode(node) && shouldRemoveEmptyElement(node.Data) {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// shouldRemoveEmptyElement reports whether an empty element of this tag
// gets stripped. Void elements are empty by definition and structural
// containers stay regardless.
func shouldRemoveEmptyElement(tag string) bool {
	voidElements := map[string]bool{
		"area": true, "base": true, "br": true, "col": true, "embed": true,
		"hr": true, "img": true, "input": true, "link": true, "meta": true,
		"param": true, "source": true, "track": true, "wbr": true,
	}

	if voidElements[tag] {
		return false
	}

	structuralElements := map[string]bool{
		"html": true, "head": true, "body": true, "main": true,
	}

	if structuralElements[tag] {
		return false
	}

	return true
}

// removeDuplicateNodes drops repeated sibling subtrees, keeping the
// first occurrence. Duplicates are detected by node signature, scoped
// per parent so identical blocks in different sections survive.
func removeDuplicateNodes(root *html.Node) {
	if root == nil {
		return
	}

	seenSignatures := make(map[*html.Node]map[string]bool)

	var traverse func(node *html.Node)
	traverse = func(node *html.Node) {
		if node == nil {
			return
		}

		if node.Type == html.ElementNode && isMeaningfulElement(node.Data) {
			parent := node.Parent
			if parent != nil {
				if seenSignatures[parent] == nil {
					seenSignatures[parent] = make(map[string]bool)
				}

				sig := nodeSignature(node)

				if seenSignatures[parent][sig] {
					parent.RemoveChild(node)
					return
				}

				seenSignatures[parent][sig] = true
			}
		}

		// Snapshot before descending, children may get removed.
		var children []*html.Node
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			children = append(children, child)
		}

		for _, child := range children {
			traverse(child)
		}
	}

	traverse(root)
}
