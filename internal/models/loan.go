package models

// Loan is a checkout of one or more items by a person.
type Loan struct {
	ID              int64      `json:"id"`
	PersonID        int64      `json:"personne_id"`
	Description     string     `json:"descriptif_objets"`
	StartedAt       string     `json:"date_emprunt"` // YYYY-MM-DD HH:MM:SS, local time
	ReturnedAt      *string    `json:"date_retour"`
	Returned        bool       `json:"retour_confirme"`
	ReturnSignature string     `json:"signature_retour"`
	Notes           string     `json:"notes"`
	DurationHours   *float64   `json:"duree_pret_heures"`
	DurationDays    *int       `json:"duree_pret_jours"`
	DurationType    string     `json:"type_duree"`
	LocationID      *int64     `json:"lieu_id"`
	LegacyItemID    *int64     `json:"materiel_id,omitempty"`
	ModifiedAt      *string    `json:"date_modification,omitempty"`
	Items           []LoanItem `json:"items,omitempty"`

	// Joined columns of read queries.
	PersonLastName  string `json:"nom,omitempty"`
	PersonFirstName string `json:"prenom,omitempty"`
	PersonClass     string `json:"classe,omitempty"`
	PersonCategory  string `json:"categorie,omitempty"`
	LocationName    string `json:"lieu_nom,omitempty"`
}

// BorrowerName returns "Prénom NOM" from the joined columns.
func (l *Loan) BorrowerName() string {
	return l.PersonFirstName + " " + l.PersonLastName
}

// LoanItem is one line of a multi-item loan.
type LoanItem struct {
	ID          int64  `json:"id"`
	LoanID      int64  `json:"pret_id"`
	ItemID      *int64 `json:"materiel_id"`
	Description string `json:"description"`

	InventoryNumber string `json:"numero_inventaire,omitempty"`
	SerialNumber    string `json:"numero_serie,omitempty"`
	Brand           string `json:"marque,omitempty"`
	Model           string `json:"modele,omitempty"`
}

// LoanFilter narrows loan queries.
type LoanFilter struct {
	Status      string // all, active, returned
	Query       string
	PersonID    int64
	ItemID      int64
	Limit       int
	OldestFirst bool
}

// LoanView is a loan decorated with its computed schedule.
type LoanView struct {
	Loan
	DueAt         string  `json:"retour_theorique"`
	DurationLabel string  `json:"duree"`
	Overdue       bool    `json:"en_retard"`
	OverdueHours  float64 `json:"depassement_heures"`
	OverdueLabel  string  `json:"depassement,omitempty"`
}

// Dashboard is the landing page read model.
type Dashboard struct {
	ActiveLoans   []LoanView `json:"prets_actifs"`
	RecentReturns []Loan     `json:"derniers_retours"`
	ActiveCount   int        `json:"actifs"`
	ReturnedCount int        `json:"retournes"`
	PeopleCount   int        `json:"personnes"`
	AlertCount    int        `json:"alertes"`
}
