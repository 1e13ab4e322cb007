package catalog

import (
	"sort"
)

// Widget is a paywalled chat persona and the service it sells.
type Widget struct {
	Name        string   `json:"name" yaml:"name"`
	ServiceID   string   `json:"serviceId" yaml:"service_id"`
	Threshold   int      `json:"threshold" yaml:"threshold"`
	KeyPrefix   string   `json:"-" yaml:"key_prefix"`
	PaidFlagKey string   `json:"-" yaml:"paid_flag_key"`
	CreditsKey  string   `json:"-" yaml:"credits_key"`
	Persona     string   `json:"persona" yaml:"persona"`
	DisplayName string   `json:"displayName" yaml:"display_name"`
	ServiceName string   `json:"serviceName" yaml:"service_name"`
	Amount      float64  `json:"amount" yaml:"amount"`
	Description string   `json:"description" yaml:"description"`
	Welcome     []string `json:"-" yaml:"welcome"`
}

var defaultWidgets = []Widget{
	{
		Name: "dreams", ServiceID: "2", Threshold: 4,
		KeyPrefix: "dream", PaidFlagKey: "hasUserPaidForDreams_traumdeutung",
		Persona: "interpreter", DisplayName: "Maestra Alma",
		ServiceName: "Significado de Sueños", Amount: 18000,
		Description: "Acceso completo a interpretaciones de sueños ilimitadas",
		Welcome: []string{
			"Los sueños son ventanas al alma. Cuéntame, ¿qué visiones te han visitado?",
			"Soy la Maestra Alma, guardiana de los secretos oníricos. ¿Qué mensaje del subconsciente te preocupa?",
		},
	},
	{
		Name: "numerology", ServiceID: "4", Threshold: 4,
		KeyPrefix: "numerology", PaidFlagKey: "hasUserPaidForNumerology_numerologie",
		Persona: "numerologist", DisplayName: "Maestra Sofía",
		ServiceName: "Lectura de Numerología", Amount: 18000,
		Description: "Acceso completo a lecturas numerológicas ilimitadas",
		Welcome: []string{
			"Los números guardan la vibración de tu destino. ¿Qué deseas descubrir?",
		},
	},
	{
		Name: "vocational", ServiceID: "5", Threshold: 4,
		KeyPrefix: "vocational", PaidFlagKey: "hasUserPaidForVocational_berufskarte",
		Persona: "counselor", DisplayName: "Dra. Valeria",
		ServiceName: "Mapa Vocacional", Amount: 18000,
		Description: "Acceso completo a orientación vocacional ilimitada",
		Welcome: []string{
			"Tu camino profesional ya está escrito en tus talentos. Cuéntame de ti.",
		},
	},
	{
		Name: "horoscope", ServiceID: "8", Threshold: 4,
		KeyPrefix: "horoscope", PaidFlagKey: "hasUserPaidForHoroscope_horoskop",
		Persona: "master", DisplayName: "Maestro Lune",
		ServiceName: "Horóscopo - Zodiaco Chino", Amount: 18000,
		Description: "Acceso completo a lecturas astrológicas ilimitadas",
		Welcome: []string{
			"Los doce animales celestiales te saludan. ¿En qué año llegaste a este mundo?",
		},
	},
	{
		Name: "animal", ServiceID: "6", Threshold: 3,
		KeyPrefix: "animalInterior", PaidFlagKey: "hasUserPaidForAnimal_inneresTier",
		CreditsKey: "freeAnimalConsultations",
		Persona: "guide", DisplayName: "Xamán Kiara",
		ServiceName: "Animal Interior - Guía Espiritual", Amount: 15000,
		Description: "Acceso completo a consultas ilimitadas con Xamán Kiara sobre tu animal interior",
		Welcome: []string{
			"Tu animal interior ya camina a tu lado. ¿Quieres conocerlo?",
		},
	},
	{
		Name: "love", ServiceID: "9", Threshold: 3,
		KeyPrefix: "love", PaidFlagKey: "hasUserPaidForLove_liebesrechner",
		CreditsKey: "freeLoveConsultations",
		Persona: "love_expert", DisplayName: "Maestra Paula",
		ServiceName: "Calculadora del Amor", Amount: 12000,
		Description: "Acceso completo a consultas ilimitadas de compatibilidad amorosa",
		Welcome: []string{
			"El amor deja huellas en las estrellas. ¿Con quién quieres medir tu compatibilidad?",
		},
	},
	{
		Name: "zodiac", ServiceID: "3", Threshold: 3,
		KeyPrefix: "astrology", PaidFlagKey: "hasUserPaidForZodiacInfo_zodiacInfo",
		CreditsKey: "freeAstrologyConsultations",
		Persona: "astrologer", DisplayName: "Maestra Carla",
		ServiceName: "Información del Zodiaco", Amount: 10000,
		Description: "Acceso completo a consultas ilimitadas sobre astrología y signos zodiacales",
		Welcome: []string{
			"Las estrellas ya conocen tu nombre. ¿Cuál es tu signo?",
		},
	},
	{
		Name: "birthchart", ServiceID: "7", Threshold: 2,
		KeyPrefix: "birthChart", PaidFlagKey: "hasUserPaidForBirthTable_geburtstabelle",
		Persona: "astrologer", DisplayName: "Maestra Emma",
		ServiceName: "Tabla de Nacimiento", Amount: 18000,
		Description: "Acceso completo a lecturas de carta natal ilimitadas",
		Welcome: []string{
			"El cielo del día en que naciste guarda tu mapa. Dime tu fecha y hora de nacimiento.",
		},
	},
}

// Widget returns the widget with the given name.
func (c *Catalog) Widget(name string) (Widget, bool) {
	w, ok := c.widgets[name]
	return w, ok
}

// Widgets returns all widgets ordered by name.
func (c *Catalog) Widgets() []Widget {
	out := make([]Widget, 0, len(c.widgets))
	for _, w := range c.widgets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func mergeWidget(base, over Widget) Widget {
	base.Name = over.Name
	if over.ServiceID != "" {
		base.ServiceID = over.ServiceID
	}
	if over.Threshold != 0 {
		base.Threshold = over.Threshold
	}
	if over.KeyPrefix != "" {
		base.KeyPrefix = over.KeyPrefix
	}
	if over.PaidFlagKey != "" {
		base.PaidFlagKey = over.PaidFlagKey
	}
	if over.CreditsKey != "" {
		base.CreditsKey = over.CreditsKey
	}
	if over.Persona != "" {
		base.Persona = over.Persona
	}
	if over.DisplayName != "" {
		base.DisplayName = over.DisplayName
	}
	if over.ServiceName != "" {
		base.ServiceName = over.ServiceName
	}
	if over.Amount > 0 {
		base.Amount = over.Amount
	}
	if over.Description != "" {
		base.Description = over.Description
	}
	if len(over.Welcome) > 0 {
		base.Welcome = over.Welcome
	}
	return base
}
