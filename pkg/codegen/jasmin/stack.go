package jasmin

// stackTracker follows the operand stack depth of the code being emitted.
// Branches record the depth at their target; a label reached only by jumps
// takes the recorded depth. Code that cannot be reached does not count
// towards the maximum.
type stackTracker struct {
	depth     int
	max       int
	reachable bool
	labels    map[string]int
}

func newStackTracker() *stackTracker {
	return &stackTracker{reachable: true, labels: make(map[string]int)}
}

func (s *stackTracker) push(n int) {
	s.depth += n
	if s.reachable && s.depth > s.max {
		s.max = s.depth
	}
}

func (s *stackTracker) pop(n int) {
	s.depth -= n
}

// branch records the current depth at a conditional jump's target
func (s *stackTracker) branch(label string) {
	if s.reachable {
		s.labels[label] = s.depth
	}
}

// jump records the target depth of an unconditional jump
func (s *stackTracker) jump(label string) {
	s.branch(label)
	s.reachable = false
}

// exit ends the current path after a return
func (s *stackTracker) exit() {
	s.depth = 0
	s.reachable = false
}

// mark places a label
func (s *stackTracker) mark(label string) {
	if s.reachable {
		return
	}
	if d, ok := s.labels[label]; ok {
		s.depth = d
		s.reachable = true
		return
	}
	s.depth = 0
}
