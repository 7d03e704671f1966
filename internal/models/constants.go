package models

// Item states.
const (
	ItemAvailable  = "disponible"
	ItemLent       = "prete"
	ItemOutOfOrder = "hors_service"
)

// Duration choices of the loan form.
const (
	DurationHours    = "heures"
	DurationDays     = "jours"
	DurationEndOfDay = "fin_journee"
	DurationDefault  = "defaut"
)

// People CSV import modes.
const (
	ImportAdd  = "ajouter"
	ImportSync = "synchroniser"
)

// Loan list filters.
const (
	LoanFilterAll      = "all"
	LoanFilterActive   = "active"
	LoanFilterReturned = "returned"
)

// Setting keys of the parametres table.
const (
	SettingDefaultDuration  = "duree_alerte_defaut"
	SettingDefaultUnit      = "duree_alerte_unite"
	SettingEndOfDay         = "heure_fin_journee"
	SettingAdminPassword    = "admin_password"
	SettingPasswordChanged  = "password_changed"
	SettingRecoveryCodeHash = "recovery_code_hash"
	SettingSchoolName       = "nom_etablissement"
	SettingScannerMode      = "mode_scanner"
	SettingZebraEnabled     = "impression_zebra_active"
	SettingZebraMethod      = "impression_zebra_methode"
	SettingZebraPort        = "impression_port"
	SettingZebraBaud        = "impression_baud"
	SettingZebraTearOff     = "impression_tearoff"
	SettingZebraURL         = "impression_zebra_url"
	SettingZPLTemplate      = "impression_zpl_template"
	SettingLabelWidth       = "impression_etiquette_largeur"
	SettingLabelHeight      = "impression_etiquette_hauteur"
	SettingLabelColumns     = "impression_colonnes"
	SettingLabelRows        = "impression_lignes"
	SettingLabelFont        = "impression_police"
	SettingLabelBarcodeSize = "impression_taille_barcode"
	SettingLabelTextSize    = "impression_taille_texte"
	SettingLabelSubtextSize = "impression_taille_sous_texte"
	SettingLabelFreeText    = "impression_texte_libre"
)

// DefaultZPLTemplate prints the inventory number as a Code 128 barcode and text.
const DefaultZPLTemplate = "^XA^CI27^FO15,20^BY2^BCN,80,N^FD{numero_inventaire}^FS^FO25,130^A0,50,28^FD{numero_inventaire}^FS^XZ"

// DefaultAdminPassword is the password of a fresh installation.
const DefaultAdminPassword = "1234"

const (
	// DefaultSessionTTL admin session lifetime in seconds
	DefaultSessionTTL = 8 * 60 * 60

	// MinPasswordLength minimum admin password length
	MinPasswordLength = 4

	// RecentReturnsLimit returns shown on the dashboard
	RecentReturnsLimit = 5

	// SearchLimit autocomplete result cap
	SearchLimit = 20

	// DefaultAlertScanInterval overdue gauge refresh period in seconds
	DefaultAlertScanInterval = 5 * 60
)
