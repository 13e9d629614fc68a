package parser

import (
	"fmt"
	"sort"

	"github.com/districtmap/backend/internal/models"
)

// Issue codes reported by ValidateMapConfig.
const (
	IssueUnknownProduct   = "unknown_product"
	IssueUnnamedProduct   = "unnamed_product"
	IssueUnknownDistrict  = "unknown_district"
	IssueGroupNoColor     = "group_without_color"
	IssueGroupOverlap     = "district_in_multiple_groups"
	IssueEmptyProductList = "empty_product_list"
)

// Issue is a non-fatal problem in a map configuration. Rendering tolerates all
// of them; they are reported so the operator can fix the document.
type Issue struct {
	Code    string `json:"code"`
	Section string `json:"section"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// ValidateMapConfig cross-checks the sections of cfg against each other and,
// when districts is non-nil, against the district names of a dataset.
func ValidateMapConfig(cfg *models.MapConfig, districts []string) []Issue {
	var issues []Issue
	add := func(code, section, key, format string, args ...any) {
		issues = append(issues, Issue{Code: code, Section: section, Key: key, Message: fmt.Sprintf(format, args...)})
	}

	var known map[string]bool
	if districts != nil {
		known = make(map[string]bool, len(districts))
		for _, d := range districts {
			known[d] = true
		}
	}

	for _, p := range cfg.Products() {
		if p.Name == "" {
			add(IssueUnnamedProduct, SectionProductCodes, fmt.Sprint(p.ID), "product %d has no name, its id is shown in the legend", p.ID)
		}
	}

	dp := cfg.DistrictProducts()
	names := make([]string, 0, len(dp))
	for d := range dp {
		names = append(names, d)
	}
	sort.Strings(names)
	for _, d := range names {
		ids := dp[d]
		if len(ids) == 0 {
			add(IssueEmptyProductList, SectionDistrictProducts, d, "district %q has an empty product list", d)
		}
		for _, id := range ids {
			if _, ok := cfg.Product(id); !ok {
				add(IssueUnknownProduct, SectionDistrictProducts, d, "district %q references unknown product %d", d, id)
			}
		}
		if known != nil && !known[d] {
			add(IssueUnknownDistrict, SectionDistrictProducts, d, "district %q is not in the geometry dataset", d)
		}
	}

	owner := map[string]string{}
	for _, g := range cfg.Groups() {
		if g.Color == "" {
			add(IssueGroupNoColor, SectionGroupColors, g.Name, "group %q has no color, districts are shaded white", g.Name)
		}
		for _, d := range g.Districts {
			if prev, ok := owner[d]; ok && prev != g.Name {
				add(IssueGroupOverlap, SectionDistrictGroups, d, "district %q is in groups %q and %q, %q wins", d, prev, g.Name, g.Name)
			}
			owner[d] = g.Name
			if known != nil && !known[d] {
				add(IssueUnknownDistrict, SectionDistrictGroups, d, "district %q in group %q is not in the geometry dataset", d, g.Name)
			}
		}
	}

	if known != nil {
		acr := cfg.Acronyms()
		keys := make([]string, 0, len(acr))
		for d := range acr {
			keys = append(keys, d)
		}
		sort.Strings(keys)
		for _, d := range keys {
			if !known[d] {
				add(IssueUnknownDistrict, SectionDistrictAcronyms, d, "acronym for %q has no matching district", d)
			}
		}
	}

	return issues
}
