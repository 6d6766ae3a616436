/*
Package provisioning seeds panels from definition files on disk.

Definitions are *.panel.yaml, *.panel.yml, *.panel.toml or *.panel.json
files anywhere under the provisioning directory. Each one names a panel id,
title, mode and content (inline or through content_file). Panels that are
already open, usually because they were restored from the store, are left
untouched so edits made through the API survive a restart.
*/
package provisioning
