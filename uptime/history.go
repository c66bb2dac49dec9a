package uptime

import (
	"strconv"
	"strings"
)

// History is a most-recent-first record of check outcomes: 0 = up, 1 = down.
type History []int

// NewHistory returns the startup history: capacity entries, all assumed up.
func NewHistory(capacity int) History {
	if capacity < 0 {
		capacity = 0
	}
	return make(History, capacity)
}

// Record pushes the latest outcome to the front and keeps at most capacity
// entries. The input slice is left untouched.
func Record(h History, isUp bool, capacity int) History {
	if capacity <= 0 {
		return History{}
	}
	v := 1
	if isUp {
		v = 0
	}
	n := len(h) + 1
	if n > capacity {
		n = capacity
	}
	out := make(History, n)
	out[0] = v
	copy(out[1:], h)
	return out
}

// String renders the history as "[0, 1, 0]".
func (h History) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range h {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(v))
	}
	b.WriteByte(']')
	return b.String()
}
