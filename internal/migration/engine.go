package migration

import (
	"context"

	"github.com/trunkctl/trunk/internal/trunkerr"
)

// Migration is one idempotent step with optional pre- and post-conditions,
// per spec.md §4.5. Design note 2: this is a plain interface-shaped struct
// of function fields rather than a closure threaded through owned cells and
// locks — the engine owns each Migration exclusively and calls it by value.
type Migration struct {
	Name         string
	Dependencies []string
	Check        func(context.Context) error
	Run          func(context.Context) error
	PostCheck    func(context.Context) error
}

// Engine runs a fixed, ordered list of migrations against a single state
// root. It is not safe for two Engines to run against the same root
// concurrently (spec.md §5).
type Engine struct {
	root       string
	migrations []Migration
	byName     map[string]*Migration
	state      State
}

// New constructs an Engine over migrations, loading any existing state from
// root (or defaulting to a fresh state if none is found).
func New(root string, migrations []Migration) (*Engine, error) {
	state, err := loadState(root)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Migration, len(migrations))
	for i := range migrations {
		byName[migrations[i].Name] = &migrations[i]
	}

	return &Engine{root: root, migrations: migrations, byName: byName, state: state}, nil
}

// MoreMigrations reports whether Execute has more work to do.
func (e *Engine) MoreMigrations() bool {
	return e.state.Cursor < uint64(len(e.migrations))
}

// Cursor returns the current cursor position, for tests.
func (e *Engine) Cursor() uint64 { return e.state.Cursor }

// Failed returns the current failed-name set, for tests.
func (e *Engine) Failed() map[string]bool {
	out := make(map[string]bool, len(e.state.Failed))
	for k := range e.state.Failed {
		out[k] = true
	}
	return out
}

// transitiveClosure expands names to the full set of migrations they
// (transitively) depend on, by repeated expansion until stable. Only
// membership is needed, not an ordering.
func (e *Engine) transitiveClosure(names []string) map[string]bool {
	closure := map[string]bool{}
	frontier := append([]string{}, names...)
	for len(frontier) > 0 {
		var next []string
		for _, name := range frontier {
			if closure[name] {
				continue
			}
			closure[name] = true
			if m, ok := e.byName[name]; ok {
				next = append(next, m.Dependencies...)
			}
		}
		frontier = next
	}
	return closure
}

// anyDependencyFailed reports whether any migration in m's transitive
// dependency closure is currently in the failed set.
func (e *Engine) anyDependencyFailed(m *Migration) bool {
	closure := e.transitiveClosure(m.Dependencies)
	for name := range closure {
		if e.state.Failed[name] {
			return true
		}
	}
	return false
}

// runOne executes a single migration's check/run/post_check sequence.
func (e *Engine) runOne(ctx context.Context, m *Migration) error {
	if e.anyDependencyFailed(m) {
		return trunkerr.New(trunkerr.KindMigration, "migration %q: a dependency has failed", m.Name)
	}
	if m.Check != nil {
		if err := m.Check(ctx); err != nil {
			return trunkerr.Wrap(trunkerr.KindMigration, err, "migration %q: check failed", m.Name)
		}
	}
	if err := m.Run(ctx); err != nil {
		return trunkerr.Wrap(trunkerr.KindMigration, err, "migration %q: run failed", m.Name)
	}
	if m.PostCheck != nil {
		if err := m.PostCheck(ctx); err != nil {
			return trunkerr.Wrap(trunkerr.KindMigration, err, "migration %q: post-check failed", m.Name)
		}
	}
	return nil
}

// Execute runs the next pending migration. The cursor is incremented before
// the migration runs, so a crash mid-step never re-runs it blindly: it's
// left in the failed set and retried via ExecuteFailed. Returns the prior
// cursor position on success, or an error on failure (the step's name has
// already been recorded in the failed set and persisted).
func (e *Engine) Execute(ctx context.Context) (uint64, error) {
	if !e.MoreMigrations() {
		return 0, trunkerr.New(trunkerr.KindMigration, "no more migrations")
	}

	prior := e.state.Cursor
	m := &e.migrations[prior]
	e.state.Cursor++

	if err := e.runOne(ctx, m); err != nil {
		e.state.Failed[m.Name] = true
		if saveErr := saveState(e.root, &e.state); saveErr != nil {
			return prior, saveErr
		}
		return prior, err
	}

	delete(e.state.Failed, m.Name)
	if err := saveState(e.root, &e.state); err != nil {
		return prior, err
	}
	return prior, nil
}

// ExecuteFailed retries every migration currently in the failed set. Names
// that succeed are removed from the set; names that fail again stay.
// State is persisted once at the end.
func (e *Engine) ExecuteFailed(ctx context.Context) error {
	names := make([]string, 0, len(e.state.Failed))
	for name := range e.state.Failed {
		names = append(names, name)
	}

	for _, name := range names {
		m, ok := e.byName[name]
		if !ok {
			continue
		}
		if err := e.runOne(ctx, m); err != nil {
			e.state.Failed[name] = true
			continue
		}
		delete(e.state.Failed, name)
	}

	return saveState(e.root, &e.state)
}
