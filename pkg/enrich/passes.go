package enrich

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/storesync/pkg/platform"
)

// Pass names, used as metric labels.
const (
	PassDetails      = "details"
	PassImages       = "images"
	PassManufacturer = "manufacturer"
	PassCategories   = "categories"
)

var joinMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storesync_join_misses_total",
	Help: "Records passed through unchanged by an enrichment pass",
}, []string{"pass"})

// JoinDetails merges product-info fields onto records keyed by ProductID.
func JoinDetails(records []platform.CatalogRecord, details map[string]platform.ProductDetail) []platform.CatalogRecord {
	out := make([]platform.CatalogRecord, 0, len(records))
	for _, r := range records {
		d, ok := details[r.ProductID]
		if !ok {
			joinMissesTotal.WithLabelValues(PassDetails).Inc()
			out = append(out, r)
			continue
		}
		out = append(out, r.WithDetail(d))
	}
	return out
}

// JoinImages attaches image URLs keyed by ProductID.
func JoinImages(records []platform.CatalogRecord, media map[string][]string) []platform.CatalogRecord {
	out := make([]platform.CatalogRecord, 0, len(records))
	for _, r := range records {
		urls, ok := media[r.ProductID]
		if !ok {
			joinMissesTotal.WithLabelValues(PassImages).Inc()
			out = append(out, r)
			continue
		}
		out = append(out, r.WithImages(urls))
	}
	return out
}

// JoinManufacturers replaces a stored manufacturer code with its label.
// Records whose code has no option (or that are already labelled) pass through.
func JoinManufacturers(records []platform.CatalogRecord, options []platform.AttributeOption) []platform.CatalogRecord {
	labels := make(map[string]string, len(options))
	for _, o := range options {
		labels[o.Value] = o.Label
	}

	out := make([]platform.CatalogRecord, 0, len(records))
	for _, r := range records {
		label, ok := labels[r.Manufacturer]
		if !ok || r.Manufacturer == "" {
			joinMissesTotal.WithLabelValues(PassManufacturer).Inc()
			out = append(out, r)
			continue
		}
		out = append(out, r.WithManufacturer(label))
	}
	return out
}

// FilterCategories keeps only the categories of each record that exist in
// the flattened tree, replacing them with the tree's full entries. An empty
// tree clears every category list.
func FilterCategories(records []platform.CatalogRecord, tree []platform.Category) []platform.CatalogRecord {
	byID := make(map[int]platform.Category, len(tree))
	for _, c := range tree {
		byID[c.ID] = c
	}

	out := make([]platform.CatalogRecord, 0, len(records))
	for _, r := range records {
		if len(r.Categories) == 0 {
			out = append(out, r)
			continue
		}
		kept := make([]platform.Category, 0, len(r.Categories))
		for _, c := range r.Categories {
			if full, ok := byID[c.ID]; ok {
				kept = append(kept, full)
			}
		}
		if len(kept) == 0 {
			joinMissesTotal.WithLabelValues(PassCategories).Inc()
		}
		out = append(out, r.WithCategories(kept))
	}
	return out
}
