// Package codegen allocates sequential, human-readable entity codes.
//
// Codes look like PREFIX-NNN. The prefix comes from the scope's seed
// string and the numeric suffix is one past the highest suffix already
// in use within the scope. Allocation never writes; the caller persists
// the returned code together with the new row.
package codegen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/aethra/farmops/internal/errors"
)

// maxRecheckAttempts bounds the free-code probe loop so a pathological
// code source cannot spin forever.
const maxRecheckAttempts = 1000

// Scope describes one allocation namespace, e.g. "boreholes of site X"
// or "assets of farm Y in category Z".
type Scope struct {
	// Key identifies the namespace for mutual exclusion. Two concurrent
	// allocations with the same Key serialize; different keys do not.
	Key string

	// Seed is the human name the prefix is derived from (site name,
	// category code). Ignored when Prefix is set explicitly.
	Seed string

	// Prefix overrides seed derivation when non-empty.
	Prefix string

	// Width is the zero-padded suffix width. Suffixes that outgrow the
	// width are kept whole, never truncated.
	Width int

	// Existing returns every code already present in the scope,
	// including soft-deleted rows and legacy code columns.
	Existing func() ([]string, error)

	// Exists reports whether a candidate code is already taken. It is
	// consulted again after the initial scan because another writer may
	// have landed between scan and persist.
	Exists func(code string) (bool, error)
}

// Allocator hands out codes one scope at a time
type Allocator struct {
	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

func NewAllocator() *Allocator {
	return &Allocator{scopes: make(map[string]*sync.Mutex)}
}

func (a *Allocator) scopeLock(key string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	if l, ok := a.scopes[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	a.scopes[key] = l
	return l
}

// Allocate returns the next free code for the scope
func (a *Allocator) Allocate(scope Scope) (string, error) {
	lock := a.scopeLock(scope.Key)
	lock.Lock()
	defer lock.Unlock()

	prefix := scope.Prefix
	if prefix == "" {
		prefix = BuildPrefix(scope.Seed)
	}

	existing, err := scope.Existing()
	if err != nil {
		return "", errors.NewInternalError(err)
	}

	next := highestSuffix(prefix, existing) + 1
	for attempt := 0; attempt < maxRecheckAttempts; attempt++ {
		candidate := formatCode(prefix, next, scope.Width)
		taken, err := scope.Exists(candidate)
		if err != nil {
			return "", errors.NewInternalError(err)
		}
		if !taken {
			return candidate, nil
		}
		next++
	}
	return "", errors.NewInternalError(fmt.Errorf("no free code in scope %s after %d attempts", scope.Key, maxRecheckAttempts))
}

// BuildPrefix derives a 3-character prefix from a seed name: the first
// three alphanumeric characters upper-cased, right-padded with X when
// the seed is shorter.
func BuildPrefix(seed string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(seed) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	prefix := b.String()
	for len(prefix) < 3 {
		prefix += "X"
	}
	return prefix
}

// highestSuffix scans codes matching PREFIX-<digits> and returns the
// largest numeric suffix, or 0 when none match.
func highestSuffix(prefix string, codes []string) int {
	re := regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `-(\d+)$`)
	max := 0
	for _, code := range codes {
		m := re.FindStringSubmatch(strings.TrimSpace(code))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}

func formatCode(prefix string, n, width int) string {
	return fmt.Sprintf("%s-%0*d", prefix, width, n)
}
