package types

// Geography entities are hub-only: a natural key and a display name. They
// are referenced from sites through the all-or-nothing geography link.

type Country struct {
	CountryKey string
	Name       string
}

type State struct {
	StateKey string
	Name     string
}

type Municipality struct {
	MunicipalityKey string
	Name            string
}

type City struct {
	CityKey string
	Name    string
}
