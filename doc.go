// Package opsdash provides top-level documentation for the operations
// dashboard backend. The module is organized as multiple subpackages (e.g.
// `dashboard`, `service`, `tools`, `agent`, `mcpclient`, and `server/http`).
//
// Importers typically depend on the subpackages directly, for example:
//
//	import (
//	  "github.com/opsdash/opsdash/service"
//	  "github.com/opsdash/opsdash/dashboard"
//	  "github.com/opsdash/opsdash/mcpclient"
//	)
//
// The root package intentionally keeps a small surface area to avoid stuttering
// and to keep subpackages composable.
package opsdash
