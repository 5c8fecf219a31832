package injector

import (
	"context"
	"errors"
	"runtime"

	"github.com/a-peyrard/injector/option"
	"github.com/a-peyrard/injector/set"
	"golang.org/x/sync/errgroup"
)

type (
	// CheckOption configures a dependency check.
	CheckOption = option.Option[checkOptions]

	checkOptions struct {
		hasNotFound bool
		notFound    any
		ignored     set.Set[Token]
	}

	// checker walks the provider graph the way Container.Get does, without invoking any
	// binding. satisfied plays the role of the instance cache for the duration of one check.
	checker struct {
		options   *checkOptions
		satisfied set.Set[frame]
	}
)

// CheckNotFoundValue makes a missing provider for the checked token itself acceptable, like
// the notFoundValue of GetOr.
func CheckNotFoundValue(notFoundValue any) CheckOption {
	return func(opts *checkOptions) {
		opts.hasNotFound = true
		opts.notFound = notFoundValue
	}
}

// CheckIgnoring skips the given tokens, typically the ones supplied later at runtime.
func CheckIgnoring(tokens ...Token) CheckOption {
	return func(opts *checkOptions) {
		for _, token := range tokens {
			opts.ignored.Add(token)
		}
	}
}

// Check verifies that c can produce token, without building anything. It fails with the same
// NoProvider and CyclicDependency errors, paths included, as c.Get(token) would.
// Instances already cached by a container of the chain are trusted.
func Check(c *Container, token Token, opts ...CheckOption) error {
	options := option.Build(&checkOptions{ignored: set.New[Token]()}, opts...)

	ch := &checker{options: options, satisfied: set.New[frame]()}
	return ch.check(newResolutionTracker(), c, lookup{
		token:       token,
		hasNotFound: options.hasNotFound,
		notFound:    options.notFound,
	})
}

// CheckAll checks several tokens concurrently and joins the failures, in tokens order.
// Checking only reads the containers, so the checks can share them.
func CheckAll(ctx context.Context, c *Container, tokens []Token, opts ...CheckOption) error {
	var (
		errs         = make([]error, len(tokens))
		group, inner = errgroup.WithContext(ctx)
	)
	group.SetLimit(runtime.GOMAXPROCS(0))

	for idx, token := range tokens {
		group.Go(func() error {
			if err := inner.Err(); err != nil {
				return err
			}
			errs[idx] = Check(c, token, opts...)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// CheckProviders checks every token bound by c itself.
func CheckProviders(ctx context.Context, c *Container, opts ...CheckOption) error {
	return CheckAll(ctx, c, c.table.Tokens(), opts...)
}

func (ch *checker) isIgnored(token Token) bool {
	return ch.options.ignored.Contains(token)
}

func (ch *checker) check(tracker *resolutionTracker, c *Container, l lookup) error {
	if ch.isIgnored(l.token) {
		return nil
	}
	if err := enter(tracker, c, l); err != nil {
		return err
	}
	defer tracker.Pop()

	if _, found := c.store.Get(scalarKey(l.token)); found {
		return nil
	}
	current := frame{token: l.token, container: c}
	if ch.satisfied.Contains(current) {
		return nil
	}

	if entry, found := c.table.entry(l.token); found {
		for _, rec := range entry.records() {
			if entry.isMulti() {
				if _, cached := c.store.Get(multiKey(rec)); cached {
					continue
				}
			}
			for _, dep := range rec.Dependencies {
				if err := ch.checkDependency(tracker, c, dep); err != nil {
					return err
				}
			}
		}
		ch.satisfied.Add(current)
		return nil
	}

	if c.parent != nil && !l.self {
		l.delegated = true
		return ch.check(tracker, c.parent, l)
	}

	if l.hasNotFound {
		return nil
	}
	return newNoProviderError(tracker.Path())
}

func (ch *checker) checkDependency(tracker *resolutionTracker, c *Container, dep Dependency) error {
	if ch.isIgnored(dep.Token) {
		return nil
	}
	start := c
	if dep.SkipSelf {
		start = c.parent
		if start == nil {
			if dep.Optional {
				return nil
			}
			return newNoProviderError(append([]Token{dep.Token}, tracker.Path()...))
		}
	}

	return ch.check(tracker, start, lookup{
		token:       dep.Token,
		hasNotFound: dep.Optional,
		self:        dep.Self,
	})
}
