package export

import (
	"fmt"
	"io"
	"strings"

	"pretgo/internal/models"
)

type personExample struct{ last, first, class string }

var personExamples = map[string][]personExample{
	"eleve":          {{"DUPONT", "Marie", "3A"}, {"MARTIN", "Lucas", "4B"}},
	"enseignant":     {{"DUBOIS", "Sophie", ""}, {"LAURENT", "Philippe", ""}},
	"agent":          {{"GARCIA", "Antonio", ""}},
	"non_enseignant": {{"GIRARD", "Marc", ""}},
}

func sectionTitle(label string) string {
	return fmt.Sprintf("# ══════ %s ══════", strings.ToUpper(label))
}

// PeopleTemplate writes an import template with one commented section per
// category, a few examples and blank rows with the category pre-filled.
func PeopleTemplate(w io.Writer, categories []models.PersonCategory) error {
	var rows [][]string
	for _, c := range categories {
		rows = append(rows, []string{sectionTitle(c.Label), "", "", ""})

		examples := personExamples[c.Key]
		if len(examples) == 0 {
			examples = []personExample{{"NOM", "Prenom", ""}}
		}
		for _, e := range examples {
			rows = append(rows, []string{e.last, e.first, c.Key, e.class})
		}

		blank := 5
		switch c.Key {
		case "eleve":
			blank = 18
		case "enseignant":
			blank = 8
		}
		for i := 0; i < blank; i++ {
			rows = append(rows, []string{"", "", c.Key, ""})
		}
	}
	return WriteCSV(w, []string{"nom", "prenom", "categorie", "classe"}, rows)
}

type itemExample struct{ brand, model, serial, os string }

var itemExamples = map[string][]itemExample{
	"Ordinateur":      {{"HP", "EliteBook 840", "SN-HP-001", "Windows 11"}, {"Dell", "Latitude 5520", "SN-DELL-002", "Windows 11"}},
	"Vidéoprojecteur": {{"Epson", "EB-W52", "", ""}},
	"Casque audio":    {{"Logitech", "H390", "", ""}},
}

// InventoryTemplate writes an inventory import template. Each category gets
// a numbered block starting at (index+1)*100+1 with its own prefix.
func InventoryTemplate(w io.Writer, categories []models.ItemCategory) error {
	var rows [][]string
	for idx, c := range categories {
		prefix := c.Prefix
		if prefix == "" {
			prefix = "INV"
		}
		rows = append(rows, []string{sectionTitle(c.Name), "", "", "", "", "", ""})

		base := (idx+1)*100 + 1
		examples := itemExamples[c.Name]
		if len(examples) == 0 {
			examples = []itemExample{{}}
		}
		for i, e := range examples {
			rows = append(rows, []string{c.Name, e.brand, e.model, e.serial, fmt.Sprintf("%s-%05d", prefix, base+i), e.os, ""})
		}
		for i := len(examples); i < len(examples)+5; i++ {
			rows = append(rows, []string{c.Name, "", "", "", fmt.Sprintf("%s-%05d", prefix, base+i), "", ""})
		}
	}
	header := []string{"type_materiel", "marque", "modele", "numero_serie",
		"numero_inventaire", "systeme_exploitation", "notes"}
	return WriteCSV(w, header, rows)
}
