package expr

// Walk visits e and every subexpression in post-order.
func Walk(e *Expr, visit func(*Expr)) {
	if e == nil {
		return
	}
	Walk(e.left, visit)
	Walk(e.right, visit)
	Walk(e.input, visit)
	visit(e)
}

// Depth returns the height of the expression tree. Leaves have depth 1.
func Depth(e *Expr) int {
	if e == nil {
		return 0
	}
	d := Depth(e.input)
	if l := Depth(e.left); l > d {
		d = l
	}
	if r := Depth(e.right); r > d {
		d = r
	}
	return d + 1
}

// Replace returns e with every subexpression whose structural key equals
// key substituted by with. The input is not modified; shared untouched
// subtrees are reused.
func Replace(e *Expr, key string, with *Expr) *Expr {
	if e == nil {
		return nil
	}
	if e.Key() == key {
		return with
	}
	left := Replace(e.left, key, with)
	right := Replace(e.right, key, with)
	input := Replace(e.input, key, with)
	if left == e.left && right == e.right && input == e.input {
		return e
	}
	clone := *e
	clone.left = left
	clone.right = right
	clone.input = input
	return &clone
}
