package domain

// Alternative is a table, or a combined pair of tables, that can take a party.
type Alternative struct {
	Table       Table  `json:"table"`
	Partner     *Table `json:"partner,omitempty"`
	CapacityMin int    `json:"capacity_min"`
	CapacityMax int    `json:"capacity_max"`
}
