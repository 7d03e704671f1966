package models

import "time"

// Person is a borrower from the school roster.
type Person struct {
	ID        int64     `json:"id"`
	LastName  string    `json:"nom"`
	FirstName string    `json:"prenom"`
	Category  string    `json:"categorie"`
	Class     string    `json:"classe"`
	Active    bool      `json:"actif"`
	CreatedAt time.Time `json:"date_creation"`

	// CategoryLabel is filled by read models only.
	CategoryLabel string `json:"categorie_label,omitempty"`
}

// FullName returns "Prénom NOM".
func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}

// PersonCategory groups people (students, teachers, staff).
type PersonCategory struct {
	ID        int64  `json:"id"`
	Key       string `json:"cle"`
	Label     string `json:"libelle"`
	Icon      string `json:"icone"`
	BgColor   string `json:"couleur_bg"`
	TextColor string `json:"couleur_text"`
	Order     int64  `json:"ordre"`
	Active    bool   `json:"actif"`
}

// PersonImportResult summarises a roster CSV import.
type PersonImportResult struct {
	Added       int      `json:"added"`
	Updated     int      `json:"updated"`
	Skipped     int      `json:"skipped"`
	Deactivated int      `json:"deactivated"`
	Protected   []string `json:"protected,omitempty"`
}

// PersonFilter narrows people queries. Category "_autres" selects people
// whose category is not configured.
type PersonFilter struct {
	Category string
	Query    string
	Limit    int
}

// CategoryOther selects people with an unknown category.
const CategoryOther = "_autres"

// LoanHistory is the list of loans of one person or item.
type LoanHistory struct {
	Loans    []Loan `json:"prets"`
	Total    int    `json:"total"`
	Active   int    `json:"en_cours"`
	Returned int    `json:"retournes"`
}
