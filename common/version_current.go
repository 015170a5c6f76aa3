package common

// CurrentVersion is the version of pvmomentum reported by the version
// command, the API ping and trace resources
var CurrentVersion = Version{
	Major:  0,
	Minor:  3,
	Patch:  0,
	Suffix: "dev",
}
