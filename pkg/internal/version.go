package internal

import (
	"runtime/debug"
	"strings"
)

const (
	_moduleName     = "github.com/luizaranda/requester"
	_unknownVersion = "v0.0.0-unknown"
)

// Version is the build version of this module. When the module is the main
// module (the requester CLI) the main module version is used, otherwise the
// version it was required at.
var Version = func() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return _unknownVersion
	}

	if strings.EqualFold(bi.Main.Path, _moduleName) && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}

	for _, dep := range bi.Deps {
		if strings.EqualFold(dep.Path, _moduleName) {
			return dep.Version
		}
	}

	return _unknownVersion
}()
