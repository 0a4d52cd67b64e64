// Package models registers the concrete embedding models.
package models

import (
	"github.com/cnclabs/kge/internal/models/complex"
	"github.com/cnclabs/kge/internal/models/distmult"
	"github.com/cnclabs/kge/internal/models/rotate"
	"github.com/cnclabs/kge/internal/models/transe"
	"github.com/cnclabs/kge/internal/models/transh"
	"github.com/cnclabs/kge/pkg/model"
)

// Registry returns a registry holding every built-in model.
func Registry() *model.Registry {
	return model.NewRegistry().MustRegister(
		model.Descriptor{Name: "TransE", Citation: transe.Citation, New: transe.New},
		model.Descriptor{Name: "TransH", Citation: transh.Citation, New: transh.New},
		model.Descriptor{Name: "DistMult", Citation: distmult.Citation, New: distmult.New},
		model.Descriptor{Name: "ComplEx", Citation: complex.Citation, New: complex.New},
		model.Descriptor{Name: "RotatE", Citation: rotate.Citation, New: rotate.New},
	)
}
