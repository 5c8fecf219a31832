package injector

import (
	"fmt"
	"strings"
	"time"

	"github.com/a-peyrard/injector/option"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type (
	// Container resolves tokens to instances from a frozen provider table, caching what it builds
	// and falling back to its parent for tokens it does not provide.
	//
	// A container is not safe for concurrent resolution. A parent must outlive its children; it
	// is never modified by them.
	Container struct {
		id     uuid.UUID
		name   string
		parent *Container
		table  *ProviderTable
		store  *instanceStore

		baseLogger zerolog.Logger
		logger     zerolog.Logger
	}

	// Option configures a container.
	Option = option.Option[containerOptions]

	containerOptions struct {
		logger *zerolog.Logger
		name   string
	}

	// lookup is one request for a token, with the modifiers of the slot asking for it.
	lookup struct {
		token Token

		// hasNotFound makes a missing provider return notFound instead of failing.
		hasNotFound bool
		notFound    any

		// self forbids delegating to the parent container.
		self bool

		// delegated is set once a child hands the lookup over to its parent.
		delegated bool
	}
)

// WithLogger sets the logger used to trace resolutions. Children inherit it.
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *containerOptions) {
		opts.logger = &logger
	}
}

// WithName names the container in logs and descriptions.
func WithName(name string) Option {
	return func(opts *containerOptions) {
		opts.name = name
	}
}

// FromResolvedProviders creates a root container from a provider table.
func FromResolvedProviders(table *ProviderTable, opts ...Option) *Container {
	return newContainer(nil, table, zerolog.Nop(), opts)
}

// ResolveAndCreate normalizes raw providers and creates a root container from them.
func ResolveAndCreate(raw []any, opts ...Option) (*Container, error) {
	table, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	return FromResolvedProviders(table, opts...), nil
}

// CreateChildFromResolved creates a child container of c from a provider table.
func (c *Container) CreateChildFromResolved(table *ProviderTable, opts ...Option) *Container {
	return newContainer(c, table, c.baseLogger, opts)
}

// ResolveAndCreateChild normalizes raw providers and creates a child container of c from them.
func (c *Container) ResolveAndCreateChild(raw []any, opts ...Option) (*Container, error) {
	table, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	return c.CreateChildFromResolved(table, opts...), nil
}

func newContainer(parent *Container, table *ProviderTable, logger zerolog.Logger, opts []Option) *Container {
	options := option.Build(&containerOptions{}, opts...)
	if options.logger != nil {
		logger = *options.logger
	}
	if table == nil {
		table = &ProviderTable{entries: make(map[Token]*tableEntry)}
	}

	c := &Container{
		id:         uuid.New(),
		name:       options.name,
		parent:     parent,
		table:      table,
		store:      newInstanceStore(),
		baseLogger: logger,
	}
	ctx := logger.With().Str("container", c.String())
	if parent != nil {
		ctx = ctx.Str("parent", parent.String())
	}
	c.logger = ctx.Logger()

	return c
}

// Get returns the instance bound to token, building it and its dependencies if needed.
// A multi token gives a []any holding one instance per provider, in declaration order.
// A token c does not bind is delegated to the parent, which builds and caches it; Pull builds
// and caches an ancestor binding in c instead.
func (c *Container) Get(token Token) (any, error) {
	return c.resolve(newResolutionTracker(), lookup{token: token})
}

// GetOr is Get returning notFoundValue instead of failing when no container of the chain
// provides token. Missing dependencies of token still fail.
func (c *Container) GetOr(token Token, notFoundValue any) (any, error) {
	return c.resolve(newResolutionTracker(), lookup{token: token, hasNotFound: true, notFound: notFoundValue})
}

func (c *Container) resolve(tracker *resolutionTracker, l lookup) (any, error) {
	if err := enter(tracker, c, l); err != nil {
		return nil, err
	}
	defer tracker.Pop()

	if comp, found := c.store.Get(scalarKey(l.token)); found {
		c.logger.Trace().Stringer("token", l.token).Msg("cache hit")
		return comp, nil
	}

	if entry, found := c.table.entry(l.token); found {
		if entry.isMulti() {
			return c.instantiateMulti(tracker, entry.multi)
		}
		return c.instantiate(tracker, entry.single, scalarKey(l.token))
	}

	if c.parent != nil && !l.self {
		l.delegated = true
		return c.parent.resolve(tracker, l)
	}

	if l.hasNotFound {
		return l.notFound, nil
	}
	return nil, newNoProviderError(tracker.Path())
}

func enter(tracker *resolutionTracker, c *Container, l lookup) error {
	if l.delegated {
		return tracker.Delegate(l.token, c)
	}
	return tracker.Push(l.token, c)
}

// resolveDependency resolves one dependency slot of a provider bound in c.
func (c *Container) resolveDependency(tracker *resolutionTracker, dep Dependency) (any, error) {
	start := c
	if dep.SkipSelf {
		start = c.parent
		if start == nil {
			if dep.Optional {
				return nil, nil
			}
			return nil, newNoProviderError(append([]Token{dep.Token}, tracker.Path()...))
		}
	}

	return start.resolve(tracker, lookup{
		token:       dep.Token,
		hasNotFound: dep.Optional,
		self:        dep.Self,
	})
}

// build resolves the dependencies of rec from c and invokes its binding.
func (c *Container) build(tracker *resolutionTracker, rec *ResolvedProvider) (any, error) {
	args := make([]any, len(rec.Dependencies))
	for i, dep := range rec.Dependencies {
		arg, err := c.resolveDependency(tracker, dep)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	start := time.Now()
	comp, err := rec.produce(args)
	if err != nil {
		c.logger.Debug().Err(err).Stringer("provider", rec).Msg("instantiation failed")
		return nil, newInstantiationError(tracker.Path(), rec, err)
	}
	c.logger.Debug().
		Stringer("provider", rec).
		Int("depth", tracker.Depth()).
		Dur("took", time.Since(start)).
		Msg("instantiated")

	return comp, nil
}

func (c *Container) instantiate(tracker *resolutionTracker, rec *ResolvedProvider, key cacheKey) (any, error) {
	comp, err := c.build(tracker, rec)
	if err != nil {
		return nil, err
	}
	c.store.Put(key, comp, rec.Kind == ClassBinding || rec.Kind == FactoryBinding)
	return comp, nil
}

// instantiateMulti builds every provider of a multi token. Each instance is cached on its own,
// the collection is not.
func (c *Container) instantiateMulti(tracker *resolutionTracker, records []*ResolvedProvider) ([]any, error) {
	values := make([]any, 0, len(records))
	for _, rec := range records {
		key := multiKey(rec)
		if comp, found := c.store.Get(key); found {
			values = append(values, comp)
			continue
		}
		comp, err := c.instantiate(tracker, rec, key)
		if err != nil {
			return nil, err
		}
		values = append(values, comp)
	}
	return values, nil
}

// Pull builds, in c, a token that only an ancestor provides: the dependencies are resolved
// from c and the instance is cached in c, so c gets its own instance, distinct from the
// ancestor's. A token provided (or already cached) by c itself is simply resolved.
func (c *Container) Pull(token Token) (any, error) {
	if _, cached := c.store.Get(scalarKey(token)); cached || c.Has(token) {
		return c.Get(token)
	}

	var entry *tableEntry
	for ancestor := c.parent; ancestor != nil && entry == nil; ancestor = ancestor.parent {
		entry, _ = ancestor.table.entry(token)
	}
	if entry == nil {
		return nil, newNoProviderError([]Token{token})
	}

	tracker := newResolutionTracker()
	if err := tracker.Push(token, c); err != nil {
		return nil, err
	}
	defer tracker.Pop()

	if entry.isMulti() {
		return c.instantiateMulti(tracker, entry.multi)
	}
	return c.instantiate(tracker, entry.single, scalarKey(token))
}

// ResolveAndInstantiate builds a single raw provider in the context of c, without binding nor
// caching it.
func (c *Container) ResolveAndInstantiate(raw any) (any, error) {
	rec, err := resolveProvider(raw)
	if err != nil {
		return nil, err
	}

	tracker := newResolutionTracker()
	if err := tracker.Push(rec.Token, c); err != nil {
		return nil, err
	}
	defer tracker.Pop()

	return c.build(tracker, rec)
}

// Has tells if c itself binds token.
func (c *Container) Has(token Token) bool {
	_, found := c.table.entry(token)
	return found
}

// HasInTree tells if c or one of its ancestors binds token.
func (c *Container) HasInTree(token Token) bool {
	for container := c; container != nil; container = container.parent {
		if container.Has(token) {
			return true
		}
	}
	return false
}

func (c *Container) Parent() *Container {
	return c.parent
}

func (c *Container) ID() uuid.UUID {
	return c.id
}

func (c *Container) String() string {
	if c.name != "" {
		return c.name
	}
	return c.id.String()
}

// Close releases the instances cached by c, closing the io.Closer ones it built. Children
// must be closed before their parent.
func (c *Container) Close() error {
	c.logger.Debug().Int("instances", c.store.Len()).Msg("closing container")
	return c.store.Close()
}

func (c *Container) Describe() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("* Container %s (id=%s)\n", c, c.id))
	if c.parent != nil {
		b.WriteString(fmt.Sprintf("\tparent: %s\n", c.parent))
	}
	b.WriteString("* Providers:\n")
	for _, token := range c.table.order {
		entry := c.table.entries[token]
		for _, rec := range entry.records() {
			b.WriteString(fmt.Sprintf("\t- %s", rec))
			if rec.Multi {
				b.WriteString(" [multi]")
			}
			b.WriteString("\n")
			if len(rec.Dependencies) > 0 {
				b.WriteString("\t\tdependencies:\n")
				for _, d := range rec.Dependencies {
					b.WriteString(fmt.Sprintf("\t\t\t- %s\n", d))
				}
			}
		}
	}
	b.WriteString("* Stored components:\n")
	for _, key := range c.store.Keys() {
		comp, _ := c.store.Get(key)
		b.WriteString(fmt.Sprintf("\t- %s: %v\n", key.token, comp))
	}
	return b.String()
}
