// Package refs resolves cross-references between the documents of an
// in-memory set.
//
// A document declares references in its refs field, a mapping of names to
// strings of the form "[protocol:]lookup":
//
//	metadata:site.title   value read from the global metadata
//	file:../authors/a.md  document at a path relative to the referrer
//	authors/a.md          same as file:
//	id:authors/jane       first document whose id equals the lookup
//
// Resolve rewrites every pending entry in place. Document targets are
// exposed through a View that hides the target's own refs, so chains of
// references can be walked or JSON-encoded without running into cycles.
// Unknown protocols always abort a run; unresolved lookups abort it under
// PolicyStrict and become warnings under PolicyPermissive.
package refs
