// debug prints the Tree-sitter C syntax tree of a file with field names,
// for checking what the front end sees.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/robert-at-pretension-io/exprdetect/internal/frontend"
)

func main() {
	nodeType := flag.String("type", "", "only print subtrees rooted at nodes of this type")
	depth := flag.Int("depth", -1, "maximum depth to print (-1: unlimited)")
	flag.Parse()

	var source []byte
	var err error
	if flag.NArg() > 0 {
		source, err = os.ReadFile(flag.Arg(0))
	} else {
		source, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tree, err := frontend.New().Tree(context.Background(), source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer tree.Close()
	root := tree.RootNode()

	if *nodeType == "" {
		dump(os.Stdout, root, "", source, 0, *depth)
		return
	}

	var find func(n *sitter.Node)
	found := 0
	find = func(n *sitter.Node) {
		if n.Type() == *nodeType {
			found++
			fmt.Printf("%s at %d:%d has %d children:\n", n.Type(), n.StartPoint().Row+1, n.StartPoint().Column+1, n.ChildCount())
			dump(os.Stdout, n, "", source, 0, *depth)
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			find(n.Child(i))
		}
	}
	find(root)
	if found == 0 {
		fmt.Printf("No %s found\n", *nodeType)
		os.Exit(1)
	}
}

func dump(w io.Writer, n *sitter.Node, field string, source []byte, level, maxDepth int) {
	indent := strings.Repeat("  ", level)
	label := n.Type()
	if field != "" {
		label = field + ": " + label
	}
	if n.IsMissing() {
		label += " (MISSING)"
	}
	if n.ChildCount() == 0 {
		fmt.Fprintf(w, "%s%s %q\n", indent, label, n.Content(source))
		return
	}
	fmt.Fprintf(w, "%s%s\n", indent, label)
	if maxDepth >= 0 && level >= maxDepth {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		dump(w, n.Child(i), n.FieldNameForChild(i), source, level+1, maxDepth)
	}
}
