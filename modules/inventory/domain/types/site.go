package types

// Site is a physical location a tenant registers devices at. The key and
// name live on the hub row; coordinates and address are satellite
// attributes; geography names come from the resolved geography link.
type Site struct {
	SiteKey      string
	Name         string
	Latitude     *float64
	Longitude    *float64
	Address      *string
	ZipCode      *string
	Country      *string
	State        *string
	Municipality *string
	City         *string
}

// HasCoordinates reports whether both coordinates are present.
func (s Site) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// HasSatelliteData reports whether any versioned descriptive attribute is
// set, i.e. whether a satellite row has to be written at create time.
func (s Site) HasSatelliteData() bool {
	return s.Address != nil || s.ZipCode != nil || s.HasCoordinates()
}

// HasGeography reports whether the full geography bundle was supplied.
// Geography is linked all-or-nothing; a partial bundle is ignored.
func (s Site) HasGeography() bool {
	return s.Country != nil && s.State != nil && s.Municipality != nil && s.City != nil
}

// SiteDetail is a hydrated site: the current-version attributes plus the
// devices currently associated with it.
type SiteDetail struct {
	Site    Site
	Devices []Device
}
