package main

import (
	"encoding/json"
	"time"

	"github.com/tilsley/stockroom/pkg/api"
	"github.com/tilsley/stockroom/pkg/ghfake"
)

type seedPart struct {
	id, number, name, category, supplier, location string
	qty, reorderPoint, reorderQty                  int
	cost                                           float64
}

// A small workshop catalogue with some parts already below their reorder
// point so suggestions and replenishment runs have work to do.
var seedParts = []seedPart{
	{"p-bolt-m6-20", "BLT-M6-20", "M6 x 20 hex bolt", "Fasteners", "Bolt Bros", "A1", 140, 100, 500, 0.12},
	{"p-nut-m6", "NUT-M6", "M6 hex nut", "Fasteners", "Bolt Bros", "A1", 60, 100, 500, 0.04},
	{"p-washer-m6", "WSH-M6", "M6 flat washer", "Fasteners", "Bolt Bros", "A2", 0, 100, 1000, 0.02},
	{"p-glue-pva", "GLU-PVA-1", "PVA wood glue, 1L", "Adhesives", "Sticky Supplies", "B3", 2, 3, 6, 8.50},
	{"p-epoxy", "GLU-EPX-50", "Two part epoxy, 50ml", "Adhesives", "Sticky Supplies", "B3", 12, 4, 0, 6.25},
	{"p-sandpaper-120", "ABR-120", "Sandpaper sheet, 120 grit", "Abrasives", "Grit & Co", "C1", 35, 20, 100, 0.45},
	{"p-sandpaper-240", "ABR-240", "Sandpaper sheet, 240 grit", "Abrasives", "Grit & Co", "C1", 8, 20, 100, 0.45},
	{"p-hinge-brass", "HNG-BR-50", "Brass butt hinge, 50mm", "Hardware", "", "D2", 24, 10, 0, 1.80},
}

var seedTime = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

// seedRepo commits the sample catalogue to owner/repo on main.
func seedRepo(gh *ghfake.Server, owner, repo string) error {
	for _, sp := range seedParts {
		p := api.Part{
			Id:              sp.id,
			PartNumber:      sp.number,
			Name:            sp.name,
			Category:        sp.category,
			Location:        ptr(sp.location),
			Unit:            "pcs",
			Quantity:        sp.qty,
			ReorderPoint:    sp.reorderPoint,
			ReorderQuantity: sp.reorderQty,
			UnitCost:        sp.cost,
			CreatedAt:       seedTime,
			UpdatedAt:       seedTime,
			UpdatedBy:       "seed",
		}
		if sp.supplier != "" {
			p.Supplier = ptr(sp.supplier)
		}
		body, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		gh.SetFile(owner, repo, "main", "parts/"+p.Id+".json", append(body, '\n'))
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
