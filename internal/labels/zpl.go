// Package labels renders inventory labels as ZPL and delivers them to a
// Zebra printer over a serial line, HTTP or raw TCP.
package labels

import (
	"strconv"
	"strings"

	"pretgo/internal/models"
)

// Delivery methods.
const (
	MethodSerial = "serial"
	MethodHTTP   = "http"
	MethodTCP    = "tcp"
)

// Config is the printer part of the installation settings.
type Config struct {
	Enabled  bool
	Method   string
	Port     string
	Baud     int
	TearOff  string
	URL      string
	Template string
	FreeText string
}

// ConfigFromSettings reads the impression_* settings. Missing or invalid
// values fall back to the defaults of a fresh installation.
func ConfigFromSettings(settings map[string]string) Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(settings[key]); v != "" {
			return v
		}
		return def
	}

	baud, err := strconv.Atoi(get(models.SettingZebraBaud, "38400"))
	if err != nil || baud <= 0 {
		baud = 38400
	}
	return Config{
		Enabled:  settings[models.SettingZebraEnabled] == "1",
		Method:   get(models.SettingZebraMethod, MethodSerial),
		Port:     get(models.SettingZebraPort, "COM3"),
		Baud:     baud,
		TearOff:  get(models.SettingZebraTearOff, "018"),
		URL:      get(models.SettingZebraURL, "http://localhost:9100"),
		Template: get(models.SettingZPLTemplate, models.DefaultZPLTemplate),
		FreeText: settings[models.SettingLabelFreeText],
	}
}

// Render fills the template placeholders for one item and prefixes the
// tear-off adjustment.
func Render(template string, it models.Item, freeText, tearOff string) string {
	r := strings.NewReplacer(
		"{numero_inventaire}", it.InventoryNumber,
		"{type}", it.Type,
		"{marque}", it.Brand,
		"{modele}", it.Model,
		"{numero_serie}", it.SerialNumber,
		"{texte_libre}", freeText,
	)
	return "~TA" + tearOff + r.Replace(template)
}

// RenderAll renders one label per item.
func RenderAll(cfg Config, items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = Render(cfg.Template, it, cfg.FreeText, cfg.TearOff)
	}
	return out
}
