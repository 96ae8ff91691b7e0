// Package assets embeds the stylesheets loaded by the modes and the client
// runtime that drives media gates in served pages.
package assets

import (
	"embed"
	"io/fs"

	"calmpage/engine"
)

//go:embed css/*.css js/*.js
var FS embed.FS

// GateScript is the logical path of the client gate runtime.
const GateScript = "js/gate.js"

// Loader serves the embedded files to mode controllers.
func Loader() engine.FSAssets { return engine.FSAssets{FS: FS} }

// Stylesheets lists the embedded stylesheet paths.
func Stylesheets() []string {
	names, err := fs.Glob(FS, "css/*.css")
	if err != nil {
		return nil
	}
	return names
}
