// Package loader injects panel resources into the live document.
//
// Scripts and links are loaded at most once per panel, keyed by src and
// href. A script is written into its container, fetched, and run in the
// panel runtime. Meta tags are always injected. Modules get a fresh
// container id exposed to their source. LoadDependencies resolves the
// panel container four levels above the mount and loads imports and meta
// concurrently, failing hard when there is no container.
package loader
