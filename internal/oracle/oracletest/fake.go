// Package oracletest provides a deterministic, table-driven oracle.Checker
// for tests.
package oracletest

import (
	"context"
	"errors"
	"sync"

	"github.com/rcliao/wip-ledger/internal/oracle"
)

// ErrInjected is returned for pairs registered with Fail*.
var ErrInjected = errors.New("injected classifier failure")

type pair [2]string

func sym(a, b string) pair {
	if b < a {
		a, b = b, a
	}
	return pair{a, b}
}

// Fake answers from fixed tables. Unlisted label pairs are different and
// unlisted description pairs are unrelated.
type Fake struct {
	mu           sync.Mutex
	clients      map[pair]bool
	projects     map[pair]bool
	descriptions map[pair]oracle.Comparison
	failing      map[string]bool
	calls        map[string]int

	// CombineAll, when set, answers every unlisted description pair as
	// progressing work joined with ", ".
	CombineAll bool
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		clients:      map[pair]bool{},
		projects:     map[pair]bool{},
		descriptions: map[pair]oracle.Comparison{},
		failing:      map[string]bool{},
		calls:        map[string]int{},
	}
}

// SameClients marks every pair in names as the same client.
func (f *Fake) SameClients(names ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			f.clients[sym(names[i], names[j])] = true
		}
	}
	return f
}

// SameProjects marks every pair in names as the same project.
func (f *Fake) SameProjects(names ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			f.projects[sym(names[i], names[j])] = true
		}
	}
	return f
}

// Combine registers d1, d2 as progressing work yielding combined.
func (f *Fake) Combine(d1, d2, combined string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descriptions[pair{d1, d2}] = oracle.Comparison{ShouldUpdate: true, UpdatedDescription: combined, Explanation: "related"}
	return f
}

// SameTask registers d1, d2 as the same task.
func (f *Fake) SameTask(d1, d2 string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descriptions[pair{d1, d2}] = oracle.Comparison{SameTask: true, UpdatedDescription: oracle.Preferred(d1, d2), Explanation: "same task"}
	return f
}

// Fail makes the given operation ("client", "project", "description")
// fail for every call.
func (f *Fake) Fail(op string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[op] = true
	return f
}

// Calls returns how many times op was asked. An empty op returns the total.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if op == "" {
		total := 0
		for _, n := range f.calls {
			total += n
		}
		return total
	}
	return f.calls[op]
}

func (f *Fake) CheckClient(_ context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["client"]++
	if f.failing["client"] {
		return false, ErrInjected
	}
	return a == b || f.clients[sym(a, b)], nil
}

func (f *Fake) CheckProject(_ context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["project"]++
	if f.failing["project"] {
		return false, ErrInjected
	}
	return a == b || f.projects[sym(a, b)], nil
}

func (f *Fake) CheckDescriptions(_ context.Context, d1, d2 string) (oracle.Comparison, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["description"]++
	if f.failing["description"] {
		return oracle.Comparison{}, ErrInjected
	}
	if c, ok := f.descriptions[pair{d1, d2}]; ok {
		return c, nil
	}
	if f.CombineAll {
		return oracle.Comparison{ShouldUpdate: true, UpdatedDescription: d1 + ", " + d2, Explanation: "related"}, nil
	}
	return oracle.Comparison{Explanation: "unrelated"}, nil
}
