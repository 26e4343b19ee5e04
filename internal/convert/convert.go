package convert

import (
	"github.com/samcharles93/hippo/internal/checkpoint"
)

// Run applies the full conversion to a raw source state: the legacy norm
// reindex (when applicable) followed by the rename pass.
func Run(st *checkpoint.State, numLayers int) (*checkpoint.State, error) {
	st, err := ReindexNorms(st, numLayers)
	if err != nil {
		return nil, err
	}
	return RenameAll(st)
}
