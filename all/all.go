// Package all imports every supported index implementation.
//
// Import this package for its side effects:
//
//	import (
//		"github.com/git-pkgs/requirements"
//		_ "github.com/git-pkgs/requirements/all"
//	)
//
//	indexes := requirements.SupportedIndexes()
//	// ["pypi", "simple"]
package all

import (
	_ "github.com/git-pkgs/requirements/internal/pypi"
	_ "github.com/git-pkgs/requirements/internal/simple"
)
