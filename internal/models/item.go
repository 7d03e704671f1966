package models

import "time"

// Item is a piece of loanable equipment from the inventory.
type Item struct {
	ID              int64     `json:"id"`
	Type            string    `json:"type_materiel"`
	Brand           string    `json:"marque"`
	Model           string    `json:"modele"`
	SerialNumber    string    `json:"numero_serie"`
	InventoryNumber string    `json:"numero_inventaire"`
	OS              string    `json:"systeme_exploitation"`
	State           string    `json:"etat"`
	Notes           string    `json:"notes"`
	Image           string    `json:"image"`
	Active          bool      `json:"actif"`
	CreatedAt       time.Time `json:"date_creation"`
}

// Label returns "Type Marque Modèle" without empty parts.
func (i *Item) Label() string {
	label := i.Type
	if i.Brand != "" {
		label += " " + i.Brand
	}
	if i.Model != "" {
		label += " " + i.Model
	}
	return label
}

// ItemCategory is an equipment type with its inventory number prefix.
type ItemCategory struct {
	ID     int64  `json:"id"`
	Name   string `json:"nom"`
	Prefix string `json:"prefixe_inventaire"`
}

// Location is a room or place a loan is used in.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nom"`
	Active    bool      `json:"actif"`
	CreatedAt time.Time `json:"date_creation"`
}

// ItemFilter narrows inventory queries.
type ItemFilter struct {
	Type  string
	Query string
	State string
	Limit int
}

// ItemImportResult summarises an inventory CSV import.
type ItemImportResult struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
}

// ScanResult is the outcome of a barcode lookup.
type ScanResult struct {
	Found   bool   `json:"found"`
	Kind    string `json:"type,omitempty"` // pret_actif, materiel
	Message string `json:"message"`
	ItemID  int64  `json:"item_id,omitempty"`
	LoanID  int64  `json:"loan_id,omitempty"`
}
