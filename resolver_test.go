package refs

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/goliatone/go-refs/pkg/activity"
	"github.com/google/go-cmp/cmp"
)

func newDoc(fields ...any) *Document {
	doc := NewDocument()
	for i := 0; i+1 < len(fields); i += 2 {
		doc.Set(fields[i].(string), fields[i+1])
	}
	return doc
}

func newRefs(pairs ...string) *Refs {
	refs := NewRefs()
	for i := 0; i+1 < len(pairs); i += 2 {
		refs.Declare(pairs[i], pairs[i+1])
	}
	return refs
}

func mustResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	resolver, err := New(opts...)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return resolver
}

func refsOf(t *testing.T, set *DocumentSet, key string) *Refs {
	t.Helper()
	doc, ok := set.Get(key)
	if !ok {
		t.Fatalf("document %q not found", key)
	}
	refs, ok := doc.Refs()
	if !ok {
		t.Fatalf("document %q has no *Refs", key)
	}
	return refs
}

func TestResolveProtocols(t *testing.T) {
	about := newDoc("title", "About")
	jane := newDoc("id", "jane", "name", "Jane")
	set := NewDocumentSet()
	set.Put("index.md", newDoc("title", "Home", "refs", newRefs(
		"about", "about.md",
		"aboutFile", "file:about.md",
		"aboutRoot", "/about.md",
		"author", "id:jane",
		"title", "metadata:a.b.c",
	)))
	set.Put("about.md", about)
	set.Put("authors/jane.md", jane)

	metadata := map[string]any{"a": map[string]any{"b": map[string]any{"c": "v"}}}
	report, err := mustResolver(t).Resolve(context.Background(), set, metadata)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if report.Phase != PhaseDone || report.Resolved != 5 || report.Unresolved != 0 || report.Processed != 1 || report.Matched != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.RunID == "" {
		t.Fatalf("expected run id to be set")
	}

	refs := refsOf(t, set, "index.md")
	for _, name := range []string{"about", "aboutFile", "aboutRoot"} {
		view, ok := refs.View(name)
		if !ok || !view.Is(about) {
			t.Fatalf("expected %s to be a view over about.md", name)
		}
	}
	if author, ok := refs.View("author"); !ok || !author.Is(jane) {
		t.Fatalf("expected author to be a view over jane")
	}
	entry, _ := refs.Entry("title")
	if entry.State != EntryValue || entry.Value != "v" {
		t.Fatalf("expected metadata value v, got %+v", entry)
	}
	if entry.Raw != "metadata:a.b.c" {
		t.Fatalf("expected raw reference kept, got %v", entry.Raw)
	}

	first, _ := refs.View("about")
	second, _ := refs.View("aboutFile")
	if first == second {
		t.Fatalf("expected one view per resolved reference")
	}
	if err := first.Set("title", "Changed"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := second.Get("title"); got != "Changed" {
		t.Fatalf("expected views to share the target, got %v", got)
	}
}

func TestResolveCircularReferences(t *testing.T) {
	set := NewDocumentSet()
	set.Put("a.md", newDoc("title", "A", "refs", newRefs("b", "file:b.md")))
	set.Put("b.md", newDoc("title", "B", "refs", newRefs("a", "file:a.md")))

	if _, err := mustResolver(t).Resolve(context.Background(), set, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	b, ok := refsOf(t, set, "a.md").View("b")
	if !ok {
		t.Fatalf("expected a.refs.b to be a view")
	}
	for _, key := range b.Keys() {
		if key == RefsField {
			t.Fatalf("expected view keys to omit refs, got %v", b.Keys())
		}
	}
	if _, ok := b.Get(RefsField); ok {
		t.Fatalf("expected a.refs.b.refs to be absent")
	}

	encoded, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"a.md":{"title":"A","refs":{"b":{"title":"B","id":"b.md"}},"id":"a.md"},"b.md":{"title":"B","refs":{"a":{"title":"A","id":"a.md"}},"id":"b.md"}}`
	if string(encoded) != want {
		t.Fatalf("unexpected encoding\nwant: %s\n got: %s", want, encoded)
	}
}

func TestResolveUnknownProtocolAborts(t *testing.T) {
	set := NewDocumentSet()
	set.Put("posts/a.md", newDoc("refs", newRefs("bad", "bogus:x", "later", "about.md")))
	set.Put("posts/about.md", NewDocument())

	report, err := mustResolver(t, WithPolicy(PolicyPermissive)).Resolve(context.Background(), set, nil)
	var unknown *UnknownProtocolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected *UnknownProtocolError, got %v", err)
	}
	if unknown.Protocol != "bogus" || unknown.Path != "posts/a.md" || unknown.ID != "posts/a.md" || unknown.Name != "bad" {
		t.Fatalf("unexpected error fields: %+v", unknown)
	}
	if !strings.Contains(err.Error(), `"bogus"`) || !strings.Contains(err.Error(), `"posts/a.md"`) {
		t.Fatalf("expected message to name protocol and path, got %q", err.Error())
	}
	if report.Phase != PhaseFailed || report.Err != err {
		t.Fatalf("expected failed report, got %+v", report)
	}

	refs := refsOf(t, set, "posts/a.md")
	bad, _ := refs.Entry("bad")
	if bad.State != EntryFailed || bad.Current() != "bogus:x" {
		t.Fatalf("expected failed entry keeping raw value, got %+v", bad)
	}
	later, _ := refs.Entry("later")
	if later.State != EntryPending {
		t.Fatalf("expected processing to stop before later entries, got %s", later.State)
	}
}

func TestResolveStrictPolicyFailsOnMissingTarget(t *testing.T) {
	set := NewDocumentSet()
	set.Put("a.md", newDoc("refs", newRefs("missing", "id:nobody", "after", "metadata:x")))

	report, err := mustResolver(t).Resolve(context.Background(), set, map[string]any{"x": 1})
	var unresolved *UnresolvedReferenceError
	if !errors.As(err, &unresolved) || !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("expected *UnresolvedReferenceError, got %v", err)
	}
	if unresolved.Protocol != ProtocolID || unresolved.Lookup != "nobody" || unresolved.Name != "missing" || unresolved.Path != "a.md" {
		t.Fatalf("unexpected error fields: %+v", unresolved)
	}
	if report.Phase != PhaseFailed || report.Unresolved != 1 || report.Resolved != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	after, _ := refsOf(t, set, "a.md").Entry("after")
	if after.State != EntryPending {
		t.Fatalf("expected run to stop at the first failure")
	}
}

func TestResolvePermissivePolicyKeepsOriginalStrings(t *testing.T) {
	set := NewDocumentSet()
	set.Put("a.md", newDoc("refs", newRefs(
		"missingFile", "nope.md",
		"missingID", "id:nobody",
		"missingMeta", "metadata:site.nope",
		"ok", "metadata:site.title",
	)))

	metadata := map[string]any{"site": map[string]any{"title": "Blog"}}
	report, err := mustResolver(t, WithPolicy(PolicyPermissive)).Resolve(context.Background(), set, metadata)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if report.Phase != PhaseDone || report.Resolved != 1 || report.Unresolved != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	warnings := report.WarningList()
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", warnings)
	}
	for _, warning := range warnings {
		if !errors.Is(warning, ErrUnresolvedReference) {
			t.Fatalf("expected unresolved warning, got %v", warning)
		}
	}

	refs := refsOf(t, set, "a.md")
	for name, raw := range map[string]string{
		"missingFile": "nope.md",
		"missingID":   "id:nobody",
		"missingMeta": "metadata:site.nope",
	} {
		value, _ := refs.Get(name)
		if value != raw {
			t.Fatalf("expected %s to keep %q, got %v", name, raw, value)
		}
	}
	if value, _ := refs.Get("ok"); value != "Blog" {
		t.Fatalf("expected ok to resolve, got %v", value)
	}
}

func TestResolveMetadataFalsyValuesAreFound(t *testing.T) {
	set := NewDocumentSet()
	set.Put("a.md", newDoc("refs", newRefs("zero", "metadata:zero", "off", "metadata:off", "empty", "metadata:empty")))

	metadata := map[string]any{"zero": 0, "off": false, "empty": ""}
	report, err := mustResolver(t).Resolve(context.Background(), set, metadata)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if report.Resolved != 3 {
		t.Fatalf("expected 3 resolved, got %d", report.Resolved)
	}
	refs := refsOf(t, set, "a.md")
	for name, want := range map[string]any{"zero": 0, "off": false, "empty": ""} {
		if got, _ := refs.Get(name); got != want {
			t.Fatalf("expected %s=%v, got %v", name, want, got)
		}
	}
}

func TestResolvePatternRestrictsReferrersNotTargets(t *testing.T) {
	set := NewDocumentSet()
	set.Put("posts/a.md", newDoc("refs", newRefs("page", "/pages/about.md", "byID", "id:team")))
	set.Put("pages/about.md", newDoc("refs", newRefs("broken", "bogus:x")))
	set.Put("pages/team.md", newDoc("id", "team"))

	report, err := mustResolver(t, WithPattern("posts/**")).Resolve(context.Background(), set, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if report.Matched != 1 || report.Resolved != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	about, _ := set.Get("pages/about.md")
	if about.Has(IDField) {
		t.Fatalf("expected documents outside the pattern not to receive ids")
	}
	if declared, _ := about.Get(RefsField); reflect.TypeOf(declared) != reflect.TypeOf(&Refs{}) {
		t.Fatalf("expected untouched refs on non-matching document")
	}
	entry, _ := refsOf(t, set, "pages/about.md").Entry("broken")
	if entry.State != EntryPending {
		t.Fatalf("expected non-matching document refs to stay pending")
	}
	if view, ok := refsOf(t, set, "posts/a.md").View("byID"); !ok {
		t.Fatalf("expected id lookup to search the whole set")
	} else if name, _ := view.Get("id"); name != "team" {
		t.Fatalf("expected team, got %v", name)
	}
}

func TestResolveProcessesInInsertionOrder(t *testing.T) {
	var order []string
	record := StrategyFunc(func(lookup string, origin Origin) (Outcome, error) {
		order = append(order, origin.Path+"#"+origin.Name)
		return Outcome{Found: true, Value: lookup}, nil
	})

	set := NewDocumentSet()
	set.Put("z.md", newDoc("refs", newRefs("second", "rec:1", "first", "rec:2")))
	set.Put("a.md", newDoc("refs", newRefs("b", "rec:3", "a", "rec:4")))

	_, err := mustResolver(t, WithStrategy("rec", record)).Resolve(context.Background(), set, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"z.md#second", "z.md#first", "a.md#b", "a.md#a"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("processing order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveNormalizesDeclaredRefs(t *testing.T) {
	set := NewDocumentSet()
	set.Put("a.md", newDoc("title", "A", "refs", map[string]any{"b": "b.md"}, "tail", true))
	set.Put("b.md", newDoc("title", "B"))
	set.Put("c.md", newDoc("refs", "not-a-mapping"))

	report, err := mustResolver(t).Resolve(context.Background(), set, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	a, _ := set.Get("a.md")
	if got, want := a.Keys(), []string{"title", "refs", "tail", "id"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected refs to keep its position, got %v", got)
	}
	if _, ok := refsOf(t, set, "a.md").View("b"); !ok {
		t.Fatalf("expected map refs to be normalized and resolved")
	}

	if report.Skipped != 1 || len(report.WarningList()) != 1 {
		t.Fatalf("expected one skipped document, got %+v", report)
	}
	if !errors.Is(report.WarningList()[0], ErrMalformedReference) {
		t.Fatalf("expected malformed warning, got %v", report.WarningList()[0])
	}
	c, _ := set.Get("c.md")
	if value, _ := c.Get(RefsField); value != "not-a-mapping" {
		t.Fatalf("expected malformed refs field left as is, got %v", value)
	}
}

func TestResolveRerunSkipsResolvedAndRetriesFailed(t *testing.T) {
	set := NewDocumentSet()
	declared := NewRefs()
	declared.Declare("b", "b.md")
	declared.Declare("later", "later.md")
	declared.Declare("count", 3)
	set.Put("a.md", newDoc("refs", declared))
	set.Put("b.md", NewDocument())

	resolver := mustResolver(t, WithPolicy(PolicyPermissive))
	first, err := resolver.Resolve(context.Background(), set, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Resolved != 1 || first.Unresolved != 1 || first.Skipped != 1 {
		t.Fatalf("unexpected first report: %+v", first)
	}

	set.Put("later.md", NewDocument())
	second, err := resolver.Resolve(context.Background(), set, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Resolved != 1 || second.Unresolved != 0 || second.Skipped != 2 {
		t.Fatalf("unexpected second report: %+v", second)
	}
	if first.RunID == second.RunID {
		t.Fatalf("expected a new run id per run")
	}
	if _, ok := refsOf(t, set, "a.md").View("later"); !ok {
		t.Fatalf("expected failed entry to resolve on rerun")
	}
	for _, warning := range second.WarningList() {
		if !errors.Is(warning, ErrMalformedReference) {
			t.Fatalf("expected malformed warnings only, got %v", warning)
		}
	}
}

func TestResolveAccessorErrorIsCause(t *testing.T) {
	boom := errors.New("boom")
	accessor := MetadataAccessorFunc(func(map[string]any, string) (any, bool, error) {
		return nil, false, wrapAccessorError("custom", "x", boom)
	})
	set := NewDocumentSet()
	set.Put("a.md", newDoc("refs", newRefs("x", "metadata:x")))

	_, err := mustResolver(t, WithMetadataAccessor(accessor)).Resolve(context.Background(), set, nil)
	if !errors.Is(err, ErrUnresolvedReference) || !errors.Is(err, boom) {
		t.Fatalf("expected unresolved error wrapping boom, got %v", err)
	}
	var accessorErr *AccessorError
	if !errors.As(err, &accessorErr) || accessorErr.Engine != "custom" {
		t.Fatalf("expected AccessorError in the chain, got %v", err)
	}
}

func TestResolveWithExpressionAccessor(t *testing.T) {
	set := NewDocumentSet()
	set.Put("a.md", newDoc("refs", newRefs("count", "metadata:len(site.authors)")))

	_, err := mustResolver(t, WithMetadataAccessor(NewExprAccessor())).Resolve(context.Background(), set, map[string]any{
		"site": map[string]any{"authors": []any{"jane", "joe"}},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got, _ := refsOf(t, set, "a.md").Get("count"); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}

func TestResolveDuplicateIDsWarn(t *testing.T) {
	set := NewDocumentSet()
	set.Put("a.md", newDoc("id", "same", "refs", newRefs("who", "id:same")))
	set.Put("b.md", newDoc("id", "same"))

	report, err := mustResolver(t).Resolve(context.Background(), set, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(report.WarningList()) != 1 || !errors.Is(report.WarningList()[0], ErrDuplicateID) {
		t.Fatalf("expected duplicate id warning, got %v", report.WarningList())
	}
	a, _ := set.Get("a.md")
	if view, _ := refsOf(t, set, "a.md").View("who"); !view.Is(a) {
		t.Fatalf("expected the first document in set order")
	}
}

func TestResolveWithoutReferences(t *testing.T) {
	var events []LogEvent
	logger := LoggerFunc(func(event LogEvent) { events = append(events, event) })

	set := NewDocumentSet()
	set.Put("a.md", newDoc("title", "A"))

	report, err := mustResolver(t, WithLogger(logger)).Resolve(context.Background(), set, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if report.Phase != PhaseDone || report.Processed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(events) == 0 || events[0].Level != LevelWarn || events[0].Message != "No documents with refs found" {
		t.Fatalf("expected a warning about missing refs, got %+v", events)
	}
	if events[0].RunID != report.RunID {
		t.Fatalf("expected log events to carry the run id")
	}
}

func TestResolveNilSet(t *testing.T) {
	report, err := mustResolver(t).Resolve(context.Background(), nil, nil)
	if !errors.Is(err, ErrNilDocumentSet) {
		t.Fatalf("expected ErrNilDocumentSet, got %v", err)
	}
	if report == nil || report.Phase != PhaseFailed {
		t.Fatalf("expected failed report, got %+v", report)
	}
}

func TestResolveEmitsActivity(t *testing.T) {
	capture := &activity.CaptureHook{}
	failing := activity.HookFunc(func(_ context.Context, event activity.Event) error {
		if event.Verb == activity.VerbRunCompleted {
			return errors.New("sink down")
		}
		return nil
	})

	set := NewDocumentSet()
	set.Put("a.md", newDoc("refs", newRefs("b", "b.md", "gone", "gone.md")))
	set.Put("b.md", newDoc("id", "bee"))

	report, err := mustResolver(t,
		WithPolicy(PolicyPermissive),
		WithActivityHooks(activity.Hooks{capture, failing}),
		WithActivityActor("build-bot"),
	).Resolve(context.Background(), set, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := []string{activity.VerbReferenceResolved, activity.VerbReferenceUnresolved, activity.VerbRunCompleted}
	if diff := cmp.Diff(want, capture.Verbs()); diff != "" {
		t.Fatalf("verbs mismatch (-want +got):\n%s", diff)
	}
	resolved := capture.Events[0]
	if resolved.ObjectID != "a.md#b" || resolved.Metadata["target"] != "bee" || resolved.ActorID != "build-bot" || resolved.Channel != activity.DefaultChannel {
		t.Fatalf("unexpected resolved event: %+v", resolved)
	}
	completed := capture.Events[2]
	if completed.ObjectID != report.RunID || completed.Metadata["resolved"] != 1 || completed.Metadata["unresolved"] != 1 {
		t.Fatalf("unexpected run event: %+v", completed)
	}

	var hookWarning bool
	for _, warning := range report.WarningList() {
		if strings.Contains(warning.Error(), "sink down") {
			hookWarning = true
		}
	}
	if !hookWarning {
		t.Fatalf("expected hook failure to be recorded as a warning, got %v", report.WarningList())
	}
}

func TestResolveEmitsRunFailed(t *testing.T) {
	capture := &activity.CaptureHook{}
	set := NewDocumentSet()
	set.Put("a.md", newDoc("refs", newRefs("bad", "bogus:x")))

	_, err := mustResolver(t, WithActivityHooks(activity.Hooks{capture})).Resolve(context.Background(), set, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	want := []string{activity.VerbReferenceUnresolved, activity.VerbRunFailed}
	if diff := cmp.Diff(want, capture.Verbs()); diff != "" {
		t.Fatalf("verbs mismatch (-want +got):\n%s", diff)
	}
	if msg, _ := capture.Events[1].Metadata["error"].(string); !strings.Contains(msg, "bogus") {
		t.Fatalf("expected failure reason in metadata, got %q", msg)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	if _, err := New(WithPolicy("lenient")); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	noop := StrategyFunc(func(string, Origin) (Outcome, error) { return Outcome{}, nil })
	if _, err := New(WithStrategy(ProtocolID, noop)); err == nil {
		t.Fatalf("expected built-in protocol override to fail")
	}
	if _, err := New(WithRawConfig(map[string]any{"patern": "**"})); err == nil {
		t.Fatalf("expected unknown config key to fail")
	}

	resolver := mustResolver(t, WithRawConfig(map[string]any{"pattern": "posts/**", "policy": "permissive"}))
	cfg := resolver.Config()
	if !reflect.DeepEqual(cfg.Pattern, []string{"posts/**"}) || cfg.Policy != PolicyPermissive {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if got, want := resolver.Protocols(), []Protocol{ProtocolFile, ProtocolID, ProtocolMetadata}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected protocols %v, got %v", want, got)
	}
}

func TestPackageResolve(t *testing.T) {
	set := NewDocumentSet()
	set.Put("a.md", newDoc("refs", newRefs("title", "metadata:title")))

	report, err := Resolve(context.Background(), set, map[string]any{"title": "T"}, WithPattern("*.md"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if report.Resolved != 1 {
		t.Fatalf("expected 1 resolved, got %d", report.Resolved)
	}
	if _, err := Resolve(context.Background(), set, nil, WithPattern("[")); !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
}
