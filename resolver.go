package refs

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-refs/pkg/activity"
	"github.com/google/uuid"
)

// Option configures a Resolver.
type Option func(*resolverConfig)

type resolverConfig struct {
	config     Config
	paths      PathResolver
	accessor   MetadataAccessor
	matcher    Matcher
	logger     Logger
	strategies []protocolStrategy
	hooks      activity.Hooks
	activity   activity.Config
	err        error
}

type protocolStrategy struct {
	protocol Protocol
	strategy Strategy
}

// WithConfig replaces the pattern and policy.
func WithConfig(cfg Config) Option {
	return func(rc *resolverConfig) {
		rc.config = cfg
	}
}

// WithRawConfig decodes loosely typed configuration through DecodeConfig. A
// decode failure is returned by New.
func WithRawConfig(raw any) Option {
	return func(rc *resolverConfig) {
		cfg, err := DecodeConfig(raw)
		if err != nil {
			rc.err = err
			return
		}
		rc.config = cfg
	}
}

// WithPattern limits which documents may declare references.
func WithPattern(patterns ...string) Option {
	return func(rc *resolverConfig) {
		rc.config.Pattern = append([]string(nil), patterns...)
	}
}

// WithPolicy sets the policy applied to unresolved references.
func WithPolicy(policy Policy) Option {
	return func(rc *resolverConfig) {
		rc.config.Policy = policy
	}
}

// WithPathResolver replaces the path resolver used by the file protocol.
func WithPathResolver(paths PathResolver) Option {
	return func(rc *resolverConfig) {
		rc.paths = paths
	}
}

// WithMetadataAccessor replaces the accessor used by the metadata protocol.
func WithMetadataAccessor(accessor MetadataAccessor) Option {
	return func(rc *resolverConfig) {
		rc.accessor = accessor
	}
}

// WithMatcher replaces the pattern matcher.
func WithMatcher(matcher Matcher) Option {
	return func(rc *resolverConfig) {
		rc.matcher = matcher
	}
}

// WithStrategy registers an additional protocol. Registering a protocol
// twice, built-in ones included, makes New fail.
func WithStrategy(protocol Protocol, strategy Strategy) Option {
	return func(rc *resolverConfig) {
		rc.strategies = append(rc.strategies, protocolStrategy{protocol: protocol, strategy: strategy})
	}
}

// WithActivityHooks enables activity events for every run.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(rc *resolverConfig) {
		rc.hooks = append(rc.hooks, hooks...)
		rc.activity.Enabled = true
	}
}

// WithActivityActor stamps actorID on emitted events.
func WithActivityActor(actorID string) Option {
	return func(rc *resolverConfig) {
		rc.activity.ActorID = actorID
	}
}

// WithActivityChannel overrides the channel of emitted events.
func WithActivityChannel(channel string) Option {
	return func(rc *resolverConfig) {
		rc.activity.Channel = channel
	}
}

// Resolver rewrites the refs fields of a document set in place. It keeps no
// per-run state and can be reused across runs, but not concurrently on the
// same set.
type Resolver struct {
	config   Config
	matcher  Matcher
	registry *StrategyRegistry
	logger   Logger
	emitter  *activity.Emitter
}

// New builds a Resolver with the metadata, file and id protocols plus any
// strategy registered through WithStrategy.
func New(opts ...Option) (*Resolver, error) {
	rc := resolverConfig{
		config:   DefaultConfig(),
		paths:    SourcePaths{},
		accessor: PathAccessor{},
		matcher:  GlobMatcher{},
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&rc)
		}
	}
	if rc.err != nil {
		return nil, rc.err
	}

	cfg, err := rc.config.Normalize()
	if err != nil {
		return nil, err
	}
	if rc.matcher == nil {
		rc.matcher = GlobMatcher{}
	}

	registry := DefaultStrategies(rc.accessor, rc.paths)
	for _, custom := range rc.strategies {
		if err := registry.Register(custom.protocol, custom.strategy); err != nil {
			return nil, err
		}
	}

	return &Resolver{
		config:   cfg,
		matcher:  rc.matcher,
		registry: registry,
		logger:   rc.logger,
		emitter:  activity.NewEmitter(rc.hooks, rc.activity),
	}, nil
}

// Resolve builds a one-off Resolver from opts and runs it.
func Resolve(ctx context.Context, set *DocumentSet, metadata map[string]any, opts ...Option) (*Report, error) {
	resolver, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(ctx, set, metadata)
}

// Config returns the normalized configuration.
func (r *Resolver) Config() Config {
	cfg := r.config
	cfg.Pattern = append([]string(nil), r.config.Pattern...)
	return cfg
}

// Protocols returns the protocols the resolver can dispatch to.
func (r *Resolver) Protocols() []Protocol {
	return r.registry.Protocols()
}

type workItem struct {
	key  string
	doc  *Document
	refs *Refs
}

// Resolve selects the documents matching the configured pattern, assigns
// missing ids and replaces every pending reference with its target. The
// report is returned even when the run fails; the error is the fatal one.
func (r *Resolver) Resolve(ctx context.Context, set *DocumentSet, metadata map[string]any) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report := &Report{
		RunID:  uuid.NewString(),
		Phase:  PhaseIdle,
		Policy: r.config.Policy,
	}
	if set == nil {
		return report, r.abort(ctx, report, ErrNilDocumentSet)
	}
	start := time.Now()

	report.Phase = PhaseSelecting
	worklist, err := r.selectDocuments(report, set)
	if err != nil {
		return report, r.abort(ctx, report, err)
	}
	if len(worklist) == 0 {
		r.log(LogEvent{Level: LevelWarn, Message: "No documents with refs found", RunID: report.RunID})
	} else {
		r.log(LogEvent{Level: LevelDebug, Message: fmt.Sprintf("Processing refs for %d documents", len(worklist)), RunID: report.RunID})
	}

	report.Phase = PhaseResolving
	for _, item := range worklist {
		report.Processed++
		origin := Origin{
			Path:     item.key,
			Dir:      Dir(item.key),
			Document: item.doc,
			Set:      set,
			Metadata: metadata,
		}
		for _, entry := range item.refs.Entries() {
			origin.Name = entry.Name
			if err := r.resolveEntry(ctx, report, origin, entry); err != nil {
				return report, r.abort(ctx, report, err)
			}
		}
	}

	report.Phase = PhaseDone
	r.log(LogEvent{
		Level:    LevelInfo,
		Message:  fmt.Sprintf("Resolved %d refs in %d documents", report.Resolved, report.Processed),
		RunID:    report.RunID,
		Duration: time.Since(start),
	})
	r.emit(ctx, report, activity.BuildRunCompletedEvent(runEventInput(report)))
	return report, nil
}

func (r *Resolver) selectDocuments(report *Report, set *DocumentSet) ([]workItem, error) {
	keys, err := r.matcher.Match(r.config.Pattern, set.Keys())
	if err != nil {
		return nil, err
	}
	report.Matched = len(keys)

	for _, err := range AssignIDs(set, keys) {
		r.warn(report, LogEvent{Message: "Duplicate document id", Err: err})
	}

	var worklist []workItem
	for _, key := range keys {
		doc, ok := set.Get(key)
		if !ok || doc == nil {
			continue
		}
		raw, ok := doc.Get(RefsField)
		if !ok || raw == nil {
			continue
		}
		refs, ok := asRefs(raw)
		if !ok {
			report.Skipped++
			r.warn(report, LogEvent{
				Message: "Skipped refs field",
				Path:    key,
				Err:     &MalformedReferenceError{Path: key, Value: raw, Reason: "refs field is not a mapping"},
			})
			continue
		}
		if current, isRefs := raw.(*Refs); !isRefs || current != refs {
			doc.Set(RefsField, refs)
		}
		if refs.Len() == 0 {
			continue
		}
		worklist = append(worklist, workItem{key: key, doc: doc, refs: refs})
	}
	return worklist, nil
}

func (r *Resolver) resolveEntry(ctx context.Context, report *Report, origin Origin, entry *Entry) error {
	if entry.Resolved() {
		report.Skipped++
		r.warn(report, LogEvent{
			Message: "Skipped resolved ref",
			Path:    origin.Path,
			Name:    entry.Name,
			Err:     &MalformedReferenceError{Name: entry.Name, Path: origin.Path, Value: entry.Current(), Reason: "already resolved"},
		})
		return nil
	}
	raw, ok := entry.Raw.(string)
	if !ok {
		report.Skipped++
		r.warn(report, LogEvent{
			Message: "Skipped ref",
			Path:    origin.Path,
			Name:    entry.Name,
			Err:     &MalformedReferenceError{Name: entry.Name, Path: origin.Path, Value: entry.Raw, Reason: "reference is not a string"},
		})
		return nil
	}

	ref := ParseReference(raw)
	event := LogEvent{
		RunID:     report.RunID,
		Path:      origin.Path,
		Name:      entry.Name,
		Reference: raw,
		Protocol:  ref.Protocol,
	}

	strategy, ok := r.registry.Lookup(ref.Protocol)
	if !ok {
		id, _ := origin.Document.ID()
		err := &UnknownProtocolError{
			Protocol:  ref.Protocol,
			Reference: raw,
			Name:      entry.Name,
			Path:      origin.Path,
			ID:        id,
		}
		entry.fail(err)
		report.Unresolved++
		r.emit(ctx, report, activity.BuildReferenceUnresolvedEvent(referenceEventInput(report, event, "", err)))
		return err
	}

	start := time.Now()
	outcome, err := strategy.Resolve(ref.Lookup, origin)
	event.Duration = time.Since(start)

	if err == nil && outcome.Found {
		target := ""
		if outcome.Document != nil {
			entry.resolveView(NewView(outcome.Document))
			target, _ = outcome.Document.ID()
		} else {
			entry.resolveValue(outcome.Value)
		}
		report.Resolved++
		event.Level = LevelDebug
		event.Message = "Resolved ref"
		r.log(event)
		r.emit(ctx, report, activity.BuildReferenceResolvedEvent(referenceEventInput(report, event, target, nil)))
		return nil
	}

	unresolved := wrapUnresolved(ref, entry.Name, origin.Path, err)
	entry.fail(unresolved)
	report.Unresolved++
	r.emit(ctx, report, activity.BuildReferenceUnresolvedEvent(referenceEventInput(report, event, "", unresolved)))
	if r.config.Policy == PolicyStrict {
		return unresolved
	}
	event.Message = "Unresolved ref"
	event.Err = unresolved
	r.warn(report, event)
	return nil
}

func (r *Resolver) abort(ctx context.Context, report *Report, err error) error {
	report.fail(err)
	r.log(LogEvent{Level: LevelError, Message: "Resolving refs failed", RunID: report.RunID, Err: err})
	r.emit(ctx, report, activity.BuildRunFailedEvent(runEventInput(report)))
	return err
}

func (r *Resolver) warn(report *Report, event LogEvent) {
	report.Warn(event.Err)
	event.Level = LevelWarn
	event.RunID = report.RunID
	r.log(event)
}

func (r *Resolver) log(event LogEvent) {
	if r.logger != nil {
		r.logger.LogResolution(event)
	}
}

func (r *Resolver) emit(ctx context.Context, report *Report, event activity.Event) {
	if !r.emitter.Enabled() {
		return
	}
	if err := r.emitter.Emit(ctx, event); err != nil {
		r.warn(report, LogEvent{Message: "Activity hook failed", Err: fmt.Errorf("refs: activity %s: %w", event.Verb, err)})
	}
}

func referenceEventInput(report *Report, event LogEvent, target string, err error) activity.ReferenceEventInput {
	return activity.ReferenceEventInput{
		RunID:     report.RunID,
		Path:      event.Path,
		Name:      event.Name,
		Reference: event.Reference,
		Protocol:  string(event.Protocol),
		Target:    target,
		Err:       err,
	}
}

func runEventInput(report *Report) activity.RunEventInput {
	warnings := 0
	if report.Warnings != nil {
		warnings = len(report.Warnings.Errors)
	}
	return activity.RunEventInput{
		RunID:      report.RunID,
		Policy:     string(report.Policy),
		Matched:    report.Matched,
		Processed:  report.Processed,
		Resolved:   report.Resolved,
		Unresolved: report.Unresolved,
		Skipped:    report.Skipped,
		Warnings:   warnings,
		Err:        report.Err,
	}
}
