package transaction

import "strings"

// The closed set of internal category tags. Every persisted transaction
// carries exactly one of these.
const (
	TagAlimentacao   = "Alimentação"
	TagTransporte    = "Transporte"
	TagSaude         = "Saúde"
	TagLazer         = "Lazer"
	TagEducacao      = "Educação"
	TagAluguel       = "Aluguel"
	TagCustosDeVida  = "Custos de Vida"
	TagSalario       = "Salário"
	TagInvestimentos = "Investimentos"
	TagOutros        = "Outros"
)

// Tags lists every valid tag. Order matters for prompt construction only.
var Tags = []string{
	TagAlimentacao,
	TagTransporte,
	TagSaude,
	TagLazer,
	TagEducacao,
	TagAluguel,
	TagCustosDeVida,
	TagSalario,
	TagInvestimentos,
	TagOutros,
}

// IsValidTag reports whether tag belongs to the closed set.
func IsValidTag(tag string) bool {
	for _, t := range Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type categoryRule struct {
	tag      string
	keywords []string
}

// categoryRules maps aggregator category substrings to internal tags.
// Checked in order; the first matching keyword wins.
var categoryRules = []categoryRule{
	{TagSalario, []string{"salário", "salary", "pro-labore", "aposentadoria", "income"}},
	{TagInvestimentos, []string{"investimento", "investment", "renda fixa", "renda variável", "dividend", "fundos"}},
	{TagAluguel, []string{"aluguel", "rent", "moradia", "housing"}},
	{TagAlimentacao, []string{"alimento", "food", "restaurante", "restaurant", "supermercado", "groceries", "delivery", "lanchonete", "padaria"}},
	{TagTransporte, []string{"transporte", "transport", "taxi", "táxi", "combustível", "gasolina", "gas station", "estacionamento", "pedágio", "mobility"}},
	{TagSaude, []string{"saúde", "health", "farmácia", "pharmacy", "hospital", "clínica", "dentista", "médico"}},
	{TagEducacao, []string{"educação", "education", "escola", "universidade", "curso", "faculdade"}},
	{TagLazer, []string{"lazer", "leisure", "entretenimento", "entertainment", "streaming", "cinema", "viagem", "travel", "jogos", "gaming", "bar"}},
	{TagCustosDeVida, []string{"telecom", "internet", "celular", "energia", "eletricidade", "água", "gás", "utilities", "condomínio", "seguro", "imposto", "taxa", "tarifa", "telefonia"}},
}

// MapCategory maps a raw aggregator category string to an internal tag.
// Pure function: ordered substring checks, first match wins, no match falls
// back to Outros.
func MapCategory(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return TagOutros
	}

	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(normalized, keyword) {
				return rule.tag
			}
		}
	}

	return TagOutros
}
