package model

import "strings"

// ProductKind classifies what a paid line item grants. Every component that
// needs to know "is this an analysis / a pack / the subscription" goes
// through Classify or the Is* helpers below; nothing else in the codebase is
// allowed to string-match product identifiers.
type ProductKind string

const (
	KindCapsule      ProductKind = "capsule"
	KindPack         ProductKind = "pack"
	KindEbook        ProductKind = "ebook"
	KindSubscription ProductKind = "subscription"
	KindCoaching     ProductKind = "coaching"
	KindMasterclass  ProductKind = "masterclass"
	KindAnalysis     ProductKind = "analysis"
)

// Product identifiers fixed by the storefront catalog.
const (
	ProductAnalysis     = "analyse-financiere"
	ProductSubscription = "abonnement"
)

// The five pre-built capsule courses. Matching them first keeps a capsule
// whose name happens to contain "pack" or "analyse" classified as a capsule.
var capsuleCatalog = map[string]struct{}{
	"capsule-budget":         {},
	"capsule-epargne":        {},
	"capsule-dette":          {},
	"capsule-investissement": {},
	"capsule-retraite":       {},
}

// Product is the catalog shape the reconciliation engine needs: identity plus
// the classification hints recorded by the storefront.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	IsPack   bool   `json:"is_pack"`
}

// Classify maps a product onto a ProductKind. The rules are ordered from most
// to least specific and later rules must never override earlier ones.
func Classify(p Product) ProductKind {
	id := strings.ToLower(strings.TrimSpace(p.ID))
	cat := strings.ToLower(strings.TrimSpace(p.Category))
	name := strings.ToLower(p.Name)

	if _, ok := capsuleCatalog[id]; ok {
		return KindCapsule
	}
	if id == ProductAnalysis || cat == "analyse" || cat == "analysis" || strings.Contains(name, "analyse") {
		return KindAnalysis
	}
	if p.IsPack || cat == "pack" {
		return KindPack
	}
	if cat == "ebook" {
		return KindEbook
	}
	if id == ProductSubscription || cat == "abonnement" || cat == "subscription" {
		return KindSubscription
	}
	if cat == "coaching" {
		return KindCoaching
	}
	if cat == "masterclass" {
		return KindMasterclass
	}
	return KindCapsule
}

// IsAnalysis reports whether the product is the financial-analysis service.
func IsAnalysis(p Product) bool { return Classify(p) == KindAnalysis }

// IsSubscription reports whether the product is the recurring subscription.
func IsSubscription(p Product) bool { return Classify(p) == KindSubscription }

// GrantsEntitlement reports whether paying for the product creates a direct
// ownership row. Analyses become tickets and subscriptions become a
// subscription row, so neither grants an entitlement.
func GrantsEntitlement(p Product) bool {
	switch Classify(p) {
	case KindAnalysis, KindSubscription:
		return false
	default:
		return true
	}
}
