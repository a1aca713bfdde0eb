package review

// Column is static display metadata consumed by the rendering layer only.
type Column struct {
	Label     string
	FieldName string
	Type      string
}

// ActionColumn renders the per-row action menu.
var ActionColumn = Column{Type: "action", FieldName: "rowActions"}
