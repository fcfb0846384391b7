package core

// CategoryKey identifies a system category. Exactly one system category
// exists per key.
type CategoryKey struct {
	Name string
	Kind Kind
}

// SystemCatalog indexes system categories by name and kind.
type SystemCatalog map[CategoryKey]Category

// NewSystemCatalog builds a catalog from a flat list, ignoring user categories.
func NewSystemCatalog(categories []Category) SystemCatalog {
	catalog := make(SystemCatalog, len(categories))
	for _, c := range categories {
		if !c.IsSystem {
			continue
		}
		catalog[CategoryKey{Name: c.Name, Kind: c.Kind}] = c
	}
	return catalog
}

func (sc SystemCatalog) Lookup(name string, kind Kind) (Category, bool) {
	c, ok := sc[CategoryKey{Name: name, Kind: kind}]
	return c, ok
}

// DefaultSystemCategories is the seed catalog shared by every store.
func DefaultSystemCategories() []Category {
	return []Category{
		{Name: CategoryInitialAdjustment, Kind: KindIncome, IsSystem: true},
		{Name: CategorySalary, Kind: KindIncome, IsSystem: true},
		{Name: "Freelance", Kind: KindIncome, IsSystem: true},
		{Name: CategoryPreviousBalance, Kind: KindIncome, IsSystem: true},
		{Name: CategoryFixedExpenses, Kind: KindExpense, IsSystem: true},
		{Name: CategoryPreviousBalance, Kind: KindExpense, IsSystem: true},
		{Name: "Food", Kind: KindExpense, IsSystem: true},
		{Name: "Transport", Kind: KindExpense, IsSystem: true},
		{Name: "Housing", Kind: KindExpense, IsSystem: true},
	}
}
