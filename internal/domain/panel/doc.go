// Package panel drives the div panel lifecycle.
//
// A Panel is one session: its own live document, script runtime, loaded
// resource registries, divGlobals bag and {command, editMode} state. The
// Manager opens and tears down sessions, persists options and restores
// them on start.
//
// Lifecycle:
//   - clear: the root shows a fixed placeholder, nothing executes, side
//     effects of earlier renders stay in the document
//   - render + edit mode + edit hooks in content: mount directly into the
//     panel root
//   - render otherwise: mount inside a wrapper div owned by the panel
//
// HTML content mounts in order: display markup, dependencies, init hooks,
// modules, data hook. Component content is instantiated, rendered to
// markup, and its effects run after mount.
package panel
