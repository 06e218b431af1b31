package core

import (
	"errors"
	"path"
	"strings"
)

var ErrNoModelArtifacts = errors.New("no model artifacts available")

// SelectBestArtifact returns the name whose file name ends with suffix and is
// greatest in lexicographic order. Artifact names carry their training
// timestamp, so this is the most recently produced model.
func SelectBestArtifact(names []string, suffix string) (string, error) {
	best, found := "", false
	for _, name := range names {
		base := path.Base(name)
		if !strings.HasSuffix(base, suffix) {
			continue
		}
		if !found || base > path.Base(best) {
			best, found = name, true
		}
	}
	if !found {
		return "", ErrNoModelArtifacts
	}
	return best, nil
}
