package enums

// RentalStatus tracks whether a recurring rental is still billing.
type RentalStatus string

const (
	RentalStatusActive RentalStatus = "active"
	RentalStatusEnded  RentalStatus = "ended"
)

func (s RentalStatus) IsValid() bool {
	return s == RentalStatusActive || s == RentalStatusEnded
}
