// Package decl defines the declaration model consumed by the bootstrapper.
//
// Go has no class decorators, so every declared unit (a module, a provider,
// an enhancer, a controller) is an explicit *Type value compared by pointer.
// Metadata describing a Type (its imports, its constructor dependencies, the
// enhancers bound to its methods) is attached elsewhere and read back through
// the metadata.Reader capability; this package only models identities,
// declaration shapes and the structural predicates used during a scan.
//
// Module declarations come in four shapes, all pointers so that identity can
// be compared during traversal:
//
//   - *Type: a plain module type.
//   - *DynamicModule: a module type plus inline providers, imports, exports
//     and identity parameters.
//   - *ForwardReference: a thunk deferring resolution of a declaration.
//   - *Pending: an asynchronous resolution awaited before use.
package decl
