package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Engine compiles and evaluates deployment policies. Thread-safe for
// concurrent evaluation and compilation; compiled programs are cached per
// policy and the active-policy list is cached to keep batch migrations off
// the database.
type Engine struct {
	env      *cel.Env
	store    Store
	cache    Cache
	programs map[string]cel.Program // policyID -> compiled program
	mu       sync.RWMutex
}

// NewEngine creates a policy engine with the standard fact environment:
// Installer (type, architecture, scope, url, productCode, ...) and App
// (name, identifier, version) as dynamic objects.
func NewEngine(store Store) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("Installer", cel.DynType),
		cel.Variable("App", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	en := &Engine{
		env:      env,
		store:    store,
		cache:    NewInMemoryCache(DefaultCacheConfig()),
		programs: make(map[string]cel.Program),
	}

	if err := en.CompileAll(); err != nil {
		return nil, fmt.Errorf("failed to compile policies: %w", err)
	}

	return en, nil
}

// Compile compiles a single policy expression to a CEL program.
// The cost limit guards against runaway admin-supplied expressions.
func (en *Engine) Compile(policyID, expression string) error {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(1000000),
	)
	if err != nil {
		return fmt.Errorf("program creation error: %w", err)
	}

	en.mu.Lock()
	en.programs[policyID] = prog
	en.mu.Unlock()

	return nil
}

// CompileAll compiles all active policies from the store and primes the
// active-policy cache.
func (en *Engine) CompileAll() error {
	policies, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, p := range policies {
		if err := en.Compile(p.ID, p.Expression); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", p.ID, err)
		}
	}

	en.cache.Set(policies)

	return nil
}

// Add validates, compiles, and stores a new policy. If the store rejects it,
// the compiled program is discarded so engine and store stay consistent.
func (en *Engine) Add(p *Policy) error {
	_, err := en.store.Get(p.ID)
	if err == nil {
		return fmt.Errorf("policy with ID %s already exists", p.ID)
	}

	if err := en.Compile(p.ID, p.Expression); err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}

	if err := en.store.Add(p); err != nil {
		en.mu.Lock()
		delete(en.programs, p.ID)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()

	return nil
}

// Update recompiles and stores an existing policy. The new expression is
// validated before the store is touched.
func (en *Engine) Update(p *Policy) error {
	if err := en.Compile(p.ID, p.Expression); err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}

	if err := en.store.Update(p); err != nil {
		return err
	}

	en.cache.Invalidate()

	return nil
}

// Delete removes a policy from the store and the compiled-program cache.
func (en *Engine) Delete(policyID string) error {
	if err := en.store.Delete(policyID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, policyID)
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// Get retrieves a policy by ID from the store.
func (en *Engine) Get(policyID string) (*Policy, error) {
	return en.store.Get(policyID)
}

// ListActive returns all active policies from the store.
func (en *Engine) ListActive() ([]*Policy, error) {
	return en.store.ListActive()
}

// EvaluateAll evaluates every active policy against the provided facts.
// Evaluation errors are captured per policy and never abort the run: a
// broken policy must not block an entire migration batch.
func (en *Engine) EvaluateAll(facts map[string]any) ([]*Evaluation, error) {
	policies := en.cache.Get()

	if policies == nil {
		var err error
		policies, err = en.store.ListActive()
		if err != nil {
			return nil, err
		}
		en.cache.Set(policies)
	}

	results := make([]*Evaluation, 0, len(policies))
	for _, p := range policies {
		en.mu.RLock()
		prog, exists := en.programs[p.ID]
		en.mu.RUnlock()

		if !exists {
			results = append(results, &Evaluation{
				PolicyID:   p.ID,
				PolicyName: p.Name,
				Action:     p.Action,
				Err:        fmt.Errorf("policy %s is not compiled", p.ID),
			})
			continue
		}

		out, _, err := prog.Eval(facts)
		if err != nil {
			results = append(results, &Evaluation{
				PolicyID:   p.ID,
				PolicyName: p.Name,
				Action:     p.Action,
				Err:        err,
			})
			continue
		}

		matched := false
		if boolVal, ok := out.Value().(bool); ok {
			matched = boolVal
		}

		results = append(results, &Evaluation{
			PolicyID:   p.ID,
			PolicyName: p.Name,
			Action:     p.Action,
			Matched:    matched,
		})
	}

	return results, nil
}
