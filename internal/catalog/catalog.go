// Package catalog содержит статический каталог тарифных планов, пакетов кредитов,
// сценариев и языков. Каталог загружается один раз при старте процесса и
// никогда не мутируется, поэтому чтение безопасно из любых горутин.
package catalog

// Plan описывает тарифный план с бизнес-правилами доступа.
// Nil в полях Credits и MessageLimit означает «безлимит»; по данным каталога
// эти поля обнуляются только вместе.
type Plan struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	PriceInCents int      `json:"price_in_cents"`
	Credits      *int     `json:"credits"`
	MessageLimit *int     `json:"message_limit"`
	Languages    []string `json:"languages"`
	Scenarios    []string `json:"scenarios"`
	Popular      bool     `json:"popular,omitempty"`
}

// Product описывает разовый пакет кредитов.
type Product struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	PriceInCents int    `json:"price_in_cents"`
	Credits      int    `json:"credits"`
	Popular      bool   `json:"popular,omitempty"`
}

func intp(v int) *int { return &v }

// Plans — список всех тарифных планов в порядке отображения.
var Plans = []Plan{
	{
		ID:           "free",
		Name:         "Plano Gratuito",
		Description:  "Teste rapidamente o app.",
		PriceInCents: 0,
		Credits:      intp(3),
		MessageLimit: intp(60),
		Languages:    []string{"en"},
		Scenarios:    []string{"meeting-friend", "restaurant"},
	},
	{
		ID:           "test",
		Name:         "Plano Teste",
		Description:  "Ideal para experimentar mais idiomas e cenários.",
		PriceInCents: 990,
		Credits:      intp(5),
		MessageLimit: intp(100),
		Languages:    []string{"en", "es", "fr"},
		Scenarios:    []string{"meeting-friend", "restaurant", "job-interview", "airport"},
	},
	{
		ID:           "basic",
		Name:         "Plano Básico",
		Description:  "Para quem leva o aprendizado a sério.",
		PriceInCents: 2490,
		Credits:      intp(20),
		MessageLimit: intp(400),
		Languages:    []string{"en", "es", "fr"},
		Scenarios: []string{
			"meeting-friend", "restaurant", "job-interview",
			"airport", "supermarket", "clothing-store",
		},
	},
	{
		ID:           "premium",
		Name:         "Plano Premium",
		Description:  "Acesso total e feedback avançado.",
		PriceInCents: 7990,
		Credits:      intp(120),
		MessageLimit: intp(2400),
		Languages:    []string{"en", "es", "fr"},
		Scenarios: []string{
			"meeting-friend", "restaurant", "job-interview", "airport",
			"supermarket", "clothing-store", "pharmacy", "office",
		},
		Popular: true,
	},
	{
		ID:           "vip",
		Name:         "Plano VIP / Ilimitado",
		Description:  "Fluência sem limites.",
		PriceInCents: 19990,
		Credits:      nil,
		MessageLimit: nil,
		Languages:    []string{"en", "es", "fr"},
		Scenarios: []string{
			"meeting-friend", "restaurant", "job-interview", "airport",
			"supermarket", "clothing-store", "pharmacy", "office",
		},
	},
}

// Products — разовые пакеты кредитов.
var Products = []Product{
	{
		ID:           "starter-pack",
		Name:         "Pacote Starter",
		Description:  "20 créditos = 400 mensagens (20 por crédito)",
		PriceInCents: 2490,
		Credits:      20,
	},
	{
		ID:           "premium-pack",
		Name:         "Premium Ilimitado",
		Description:  "120 créditos = 2.400 mensagens (20 por crédito)",
		PriceInCents: 7990,
		Credits:      120,
		Popular:      true,
	},
}

// ScenarioDescriptions сопоставляет идентификатор сценария с кратким описанием,
// используемым при построении системного промпта.
var ScenarioDescriptions = map[string]string{
	"meeting-friend": "conversa casual",
	"restaurant":     "pedir comida, reserva, conta",
	"job-interview":  "entrevista formal",
	"airport":        "check-in, imigração",
	"supermarket":    "compras",
	"clothing-store": "roupas, numeração",
	"pharmacy":       "sintomas, medicamentos",
	"office":         "ambiente de trabalho",
}

// Languages — глобальный список поддерживаемых кодов языков.
var Languages = []string{"en", "es", "fr"}

// StripePriceMap сопоставляет идентификаторы платных планов с price id в Stripe.
var StripePriceMap = map[string]string{
	"test":    "price_1SaFSiHBpM4SjtcoOPuSf2Du",
	"basic":   "price_1SaFV5HBpM4Sjtco9xdwFSja",
	"premium": "price_1SaFWXHBpM4SjtcoFG78wo6f",
	"vip":     "price_1SaFX9HBpM4SjtcordPTDlca2",
}

// AllScenarioIDs возвращает список всех идентификаторов сценариев.
func AllScenarioIDs() []string {
	ids := make([]string, 0, len(ScenarioDescriptions))
	for id := range ScenarioDescriptions {
		ids = append(ids, id)
	}
	return ids
}

// PlanByID возвращает план по идентификатору и признак, что он найден.
func PlanByID(id string) (Plan, bool) {
	for _, plan := range Plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return Plan{}, false
}

// FreePlan возвращает бесплатный план — каноничный fallback для
// незарегистрированных пользователей и неизвестных идентификаторов планов.
func FreePlan() Plan {
	return Plans[0]
}

// ScenarioDescription возвращает описание сценария или текст-заглушку,
// если идентификатор неизвестен.
func ScenarioDescription(scenarioID string) string {
	if desc, ok := ScenarioDescriptions[scenarioID]; ok {
		return desc
	}
	return "Cenário não definido"
}

// HasScenario сообщает, входит ли сценарий в план.
func (p Plan) HasScenario(scenarioID string) bool {
	for _, s := range p.Scenarios {
		if s == scenarioID {
			return true
		}
	}
	return false
}

// HasLanguage сообщает, входит ли язык в план.
func (p Plan) HasLanguage(languageID string) bool {
	for _, l := range p.Languages {
		if l == languageID {
			return true
		}
	}
	return false
}

// Unlimited сообщает, что план не ограничивает число сообщений.
func (p Plan) Unlimited() bool {
	return p.MessageLimit == nil
}
