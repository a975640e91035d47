package enums

// IDType classifies the national identity document a customer presented.
type IDType string

const (
	IDTypeCedula   IDType = "cedula"
	IDTypeNIT      IDType = "nit"
	IDTypePassport IDType = "passport"
	IDTypeOther    IDType = "other"
)

func (t IDType) IsValid() bool {
	switch t {
	case IDTypeCedula, IDTypeNIT, IDTypePassport, IDTypeOther:
		return true
	default:
		return false
	}
}
