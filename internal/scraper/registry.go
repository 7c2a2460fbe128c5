package scraper

// NewRegistry builds every consultable source keyed by its public name.
func NewRegistry(d *Deps) map[string]*Source {
	sources := []*Source{
		NewJudicialSource(d),
		NewPensionSource(d),
		NewTransitSource(d),
		NewProcessesSource(d),
		NewIESSSource(d),
		NewCriminalSource(d),
		NewTaxDebtSource(d),
		NewCompaniesSource(d),
		NewInterpolSource(d),
	}

	registry := make(map[string]*Source, len(sources))
	for _, src := range sources {
		registry[src.Name] = src
	}
	return registry
}
