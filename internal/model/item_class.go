package model

// ItemClass is the catalog classification that drives percentage rules.
type ItemClass string

const (
	ClassSurgery           ItemClass = "surgery"
	ClassMedicalManagement ItemClass = "medical_management"
	ClassStandard          ItemClass = "standard"
	// ClassUnknown is reported for line items absent from the catalog.
	ClassUnknown ItemClass = "unknown"
)

// AllItemClasses lists the classes a catalog entry may carry.
var AllItemClasses = []ItemClass{ClassSurgery, ClassMedicalManagement, ClassStandard}

// ItemClassByName maps a catalog "type" value to its class. Anything other
// than surgery or medical_management (medicine, lab_test, ...) is standard.
func ItemClassByName(name string) ItemClass {
	switch ItemClass(name) {
	case ClassSurgery:
		return ClassSurgery
	case ClassMedicalManagement:
		return ClassMedicalManagement
	default:
		return ClassStandard
	}
}

// PercentageReduced reports whether repeat-diagnosis percentages apply.
func (c ItemClass) PercentageReduced() bool {
	return c == ClassSurgery || c == ClassMedicalManagement
}
