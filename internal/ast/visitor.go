package ast

// Walk traverses an expression in depth-first order.
// For each node, it calls fn(node). If fn returns false,
// the children of that node are not visited.
//
// Example: collect referenced variable indices
//
//	var used []int
//	ast.Walk(expr, func(n ast.Expr) bool {
//	    if v, ok := n.(*ast.VarRef); ok {
//	        used = append(used, v.Index)
//	    }
//	    return true
//	})
func Walk(node Expr, fn func(Expr) bool) {
	if node == nil || !fn(node) {
		return
	}

	switch n := node.(type) {
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *UnaryExpr:
		Walk(n.Expr, fn)
	case *CallExpr:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	}
}

// Depth returns the height of the tree rooted at node: 1 for a leaf.
func Depth(node Expr) int {
	if node == nil {
		return 0
	}
	child := 0
	switch n := node.(type) {
	case *BinaryExpr:
		child = max(Depth(n.Left), Depth(n.Right))
	case *UnaryExpr:
		child = Depth(n.Expr)
	case *CallExpr:
		for _, arg := range n.Args {
			child = max(child, Depth(arg))
		}
	}
	return child + 1
}

// CountNodes returns the number of nodes in the tree.
func CountNodes(node Expr) int {
	count := 0
	Walk(node, func(Expr) bool {
		count++
		return true
	})
	return count
}
