// Package imports registers every routepack tool with the registry via
// package init side effects. Imported for side effects from main.
package imports

import (
	_ "github.com/routepack/routepack/internal/tools/cleanupbundles"
	_ "github.com/routepack/routepack/internal/tools/extractroute"
	_ "github.com/routepack/routepack/internal/tools/listbundles"
	_ "github.com/routepack/routepack/internal/tools/listroutes"
)
