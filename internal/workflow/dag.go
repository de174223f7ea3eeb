package workflow

import (
	"fmt"
	"strings"
	"sync"
)

// DAG holds a session's TodoItems keyed by id under a single mutex,
// exposing the eligibility and status-propagation rules the scheduler
// needs. Ordering among items is otherwise unconstrained.
type DAG struct {
	mu    sync.Mutex
	items map[string]*TodoItem
	order []string
}

// BuildDAG validates that every dependency id exists and that the
// dependency graph has no cycle, returning the offending chain when one
// is found.
func BuildDAG(items []TodoItem) (*DAG, error) {
	byID := make(map[string]*TodoItem, len(items))
	order := make([]string, 0, len(items))
	for i := range items {
		item := items[i]
		if _, exists := byID[item.ID]; exists {
			return nil, fmt.Errorf("workflow: duplicate todo id %q", item.ID)
		}
		if item.Status == "" {
			item.Status = StatusPending
		}
		byID[item.ID] = &item
		order = append(order, item.ID)
	}
	for _, item := range byID {
		for _, dep := range item.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("workflow: todo %q depends on unknown id %q", item.ID, dep)
			}
		}
	}

	if chain := findCycle(byID, order); chain != nil {
		return nil, fmt.Errorf("workflow: dependency cycle: %s", strings.Join(chain, " -> "))
	}

	return &DAG{items: byID, order: order}, nil
}

// findCycle runs a three-color DFS and returns the offending chain
// (including the repeated id at both ends) or nil if acyclic.
func findCycle(items map[string]*TodoItem, order []string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(items))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range items[id].Dependencies {
			switch color[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				idx := indexOf(stack, dep)
				cycle = append(append([]string{}, stack[idx:]...), dep)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range order {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

func indexOf(haystack []string, needle string) int {
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	return -1
}

// Get returns the item with the given id, or nil if it does not exist.
func (d *DAG) Get(id string) *TodoItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.items[id]
}

// Len reports the number of items in the DAG.
func (d *DAG) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Snapshot returns a copy of every item in registration order.
func (d *DAG) Snapshot() []TodoItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]TodoItem, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.items[id])
	}
	return out
}

// Eligible returns the ids of pending items whose dependencies are all
// satisfied, without marking them started.
func (d *DAG) Eligible(treatSkippedAsDone bool) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var eligible []string
	for _, id := range d.order {
		item := d.items[id]
		if item.Status != StatusPending {
			continue
		}
		if d.dependenciesSatisfiedLocked(item, treatSkippedAsDone) {
			eligible = append(eligible, id)
		}
	}
	return eligible
}

func (d *DAG) dependenciesSatisfiedLocked(item *TodoItem, treatSkippedAsDone bool) bool {
	for _, dep := range item.Dependencies {
		depItem := d.items[dep]
		if depItem == nil || !depItem.Status.satisfiesDependency(treatSkippedAsDone) {
			return false
		}
	}
	return true
}

// MarkStarted transitions a pending item to in_progress.
func (d *DAG) MarkStarted(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if item, ok := d.items[id]; ok {
		item.Status = StatusInProgress
	}
}

// SetStatus sets an item's terminal or intermediate status.
func (d *DAG) SetStatus(id string, status TodoStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if item, ok := d.items[id]; ok {
		item.Status = status
	}
}

// PropagateBlocked walks pending items and marks any whose dependency
// chain contains a permanently failed or blocked item as blocked too,
// since they can now never become eligible.
func (d *DAG) PropagateBlocked(treatSkippedAsDone bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	changed := true
	for changed {
		changed = false
		for _, id := range d.order {
			item := d.items[id]
			if item.Status != StatusPending {
				continue
			}
			for _, dep := range item.Dependencies {
				depItem := d.items[dep]
				if depItem.Status == StatusFailed || depItem.Status == StatusBlocked {
					item.Status = StatusBlocked
					changed = true
					break
				}
				if depItem.Status == StatusSkipped && !treatSkippedAsDone {
					item.Status = StatusBlocked
					changed = true
					break
				}
			}
		}
	}
}

// AllTerminal reports whether every item has reached a terminal status.
func (d *DAG) AllTerminal() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range d.order {
		if !d.items[id].Status.Terminal() {
			return false
		}
	}
	return true
}
