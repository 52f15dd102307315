package checker

import "fmt"

// TargetType is the category of target a check probes.
type TargetType string

const (
	// TargetPage is one HTML page.
	TargetPage TargetType = "PAGE"
	// TargetServer is the origin serving the pages.
	TargetServer TargetType = "SERVER"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetPage, TargetServer:
		return true
	}
	return false
}

// Family groups checks by the kind of weakness they look for.
type Family string

const (
	FamilySecurity Family = "SECURITY"
	FamilySEO      Family = "SEO"
)

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	switch f {
	case FamilySecurity, FamilySEO:
		return true
	}
	return false
}

// Identity is the fixed description of a check.
type Identity struct {
	Name                  string
	Description           string
	TargetType            TargetType
	Family                Family
	RequiresAuthorization bool
	CanRunDuringCrawl     bool
}

// Validate reports an identity built from values outside the enumerations,
// e.g. one decoded from a stored run.
func (id Identity) Validate() error {
	if id.Name == "" {
		return fmt.Errorf("check identity: empty name")
	}
	if !id.TargetType.Valid() {
		return fmt.Errorf("check %s: invalid target type %q", id.Name, id.TargetType)
	}
	if !id.Family.Valid() {
		return fmt.Errorf("check %s: invalid family %q", id.Name, id.Family)
	}
	return nil
}
