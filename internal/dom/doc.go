/*
Package dom holds the live document a panel renders into.

A Document owns an x/net/html tree with a head and a body. Every mutation
goes through the Document so that concurrent loaders, hooks and renders see
a consistent tree. Streaming insertion (Write) parses markup in the context
of its container and appends the resulting nodes in document order, which is
how resource tags reach the head and module scripts reach their container.

Lookups come in two flavours: ElementByID uses XPath through htmlquery, and
QuerySelector/QuerySelectorAll use CSS selectors through goquery.

The panel chrome mounted by MountPanel mirrors the host layout:

	body > div.panel-container > div.panel-content > div.div-panel

so that walking four ancestors up from a mounted element always reaches a
container for dependencies.
*/
package dom
