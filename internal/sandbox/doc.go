/*
Package sandbox executes panel scripts and components.

# Overview

Each panel session owns one Runtime: a goja VM with console capture, an
execution timeout, context cancellation, and globals backed by the panel's
live document (document, window, element proxies).

Everything author code runs through one primitive, EvaluateWithBindings,
which builds a function from an ordered list of parameter names and the
source text and calls it with the matching values. Component instantiation
and lifecycle hooks are thin wrappers around it:

	Instantiate: <transformed>; return <exportedFn>;
	RunHook:     <script>; if (typeof <hook> === 'function') { return <hook>(...); }

# Bindings

The default component bindings are, in order, React, UI, css and props.
React provides createElement, Fragment and a static subset of hooks
(useState, useRef, useMemo, useCallback, useEffect). Effects are queued during
render and flushed after the output is mounted.

# Isolation

Author code is trusted. The runtime only removes the Node.js-style globals
and bounds execution time. It is not a security boundary.

# Usage

	rt, err := sandbox.New(sandbox.DefaultConfig())
	rt.AttachDocument(doc)

	fn, err := rt.Instantiate(ctx, transformed, "Panel", rt.DefaultBindings(props))
	markup, err := rt.RenderComponent(ctx, fn, props)
	err = rt.FlushEffects(ctx)
*/
package sandbox
