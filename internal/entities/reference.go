// Package entities contains the core domain objects for the barghalarm importer
package entities

// City is a city served by the utility portal
type City struct {
	ID     int64
	NameFa string // Localized display name
	NameEn string
	Code   string
}

// Area is the portal's searchable geographic unit, always nested under a city
type Area struct {
	ID     int64
	CityID int64
	Name   string
	Code   string // Value of the portal's area select

	CityName string // Localized name of the city, filled by area listings
}

// Address is a canonical, free-text address label within a city
type Address struct {
	ID     int64
	CityID int64
	Label  string
	Code   string
}
