package session

// Navigator walks questions linearly by array index.
type Navigator struct {
	total int
	index int
}

func NewNavigator(total, index int) *Navigator {
	if total < 0 {
		total = 0
	}
	if index < 0 {
		index = 0
	}
	if index > total {
		index = total
	}
	return &Navigator{total: total, index: index}
}

func (n *Navigator) Index() int { return n.index }

func (n *Navigator) Total() int { return n.total }

// Done reports whether every question has been answered.
func (n *Navigator) Done() bool { return n.index >= n.total }

func (n *Navigator) IsLast() bool { return n.total > 0 && n.index == n.total-1 }

// Advance moves to the next question and reports whether there was one to leave.
func (n *Navigator) Advance() bool {
	if n.Done() {
		return false
	}
	n.index++
	return true
}
