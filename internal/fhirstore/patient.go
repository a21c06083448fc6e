package fhirstore

// IdentifierSystem marks the identifier entry that carries the identity id on
// a patient resource.
const IdentifierSystem = "urn:gravitate-health:user-id"

// HumanName is the FHIR structured name on a patient.
type HumanName struct {
	Use    string   `json:"use"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Identifier cross-references the patient to its identity.
type Identifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// Patient is the minimal FHIR Patient shape this service manages. The record
// id equals the identity id; the identifier block repeats it for
// cross-reference by consumers that match on identifiers rather than ids.
type Patient struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Active       bool         `json:"active"`
	Name         []HumanName  `json:"name"`
	Identifier   []Identifier `json:"identifier"`
}

// BuildPatient assembles the creation payload for a newly registered
// identity.
func BuildPatient(identityID, firstName, lastName string) Patient {
	name := HumanName{Use: "usual", Family: lastName}
	if firstName != "" {
		name.Given = []string{firstName}
	}
	return Patient{
		ResourceType: "Patient",
		ID:           identityID,
		Active:       true,
		Name:         []HumanName{name},
		Identifier:   []Identifier{{System: IdentifierSystem, Value: identityID}},
	}
}
