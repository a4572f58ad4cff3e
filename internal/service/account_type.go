package service

import "github.com/noah-isme/spml-provisioner/internal/models"

// AccountType is the effective type derived from a candidate's career type and status.
type AccountType struct {
	Effective string
	// ForceInactiveEmail replaces every email copy with the synthetic login@domain address.
	ForceInactiveEmail bool
}

// DeriveAccountType maps the raw career type and status onto an effective account type.
func DeriveAccountType(careerType, status string) AccountType {
	switch {
	case careerType == models.CareerStudent && status == models.StatusInactive:
		return AccountType{Effective: models.TypeInactiveStudent}
	case careerType == models.CareerStaff && status == models.StatusInactive:
		return AccountType{Effective: models.TypeInactiveStaff, ForceInactiveEmail: true}
	case careerType == models.CareerThirdParty && status == models.StatusInactive:
		return AccountType{Effective: models.TypeInactiveThirdParty, ForceInactiveEmail: true}
	case status == models.StatusAdmitted:
		return AccountType{Effective: models.TypeOffer}
	default:
		return AccountType{Effective: careerType}
	}
}
