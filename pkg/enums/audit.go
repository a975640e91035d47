package enums

// AuditAction labels what a caller did with a sensitive field.
type AuditAction string

const (
	AuditActionRevealID AuditAction = "reveal_id_number"
)

func (a AuditAction) IsValid() bool {
	return a == AuditActionRevealID
}

// AuditEntityType names the aggregate a sensitive read targeted.
type AuditEntityType string

const (
	AuditEntityOrder  AuditEntityType = "order"
	AuditEntityRental AuditEntityType = "rental"
)

func (t AuditEntityType) IsValid() bool {
	return t == AuditEntityOrder || t == AuditEntityRental
}
