package enrichment

import (
	"encoding/json"
	"fmt"
	"strings"

	"grana/internal/domain/transaction"
)

// maxPromptExamples bounds the few-shot history block of the prompt.
const maxPromptExamples = 30

// keyword rules included verbatim in every prompt. These keep common
// Brazilian merchants stable across model versions.
const promptRules = `Regras fixas de categorização por palavra-chave:
- uber, 99app, 99 pop, cabify, metrô, ônibus, posto -> Transporte
- ifood, rappi, restaurante, padaria, mercado, supermercado, açougue -> Alimentação
- drogaria, farmácia, hospital, clínica, laboratório -> Saúde
- netflix, spotify, cinema, steam, bar, show, viagem -> Lazer
- escola, faculdade, universidade, curso, udemy, alura -> Educação
- aluguel, imobiliária, condomínio (moradia) -> Aluguel
- luz, energia, água, gás, internet, celular, telefone, seguro, imposto -> Custos de Vida
- salário, pagamento de salário, pró-labore -> Salário
- cdb, tesouro, corretora, b3, rendimento, aplicação -> Investimentos
- qualquer outro caso sem correspondência clara -> Outros`

type promptTransaction struct {
	ExternalID  string  `json:"externalId"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	RawCategory string  `json:"rawCategory,omitempty"`
}

// buildPrompt assembles the single-turn categorization prompt: few-shot
// history examples, the fixed keyword rules and the pending transactions.
func buildPrompt(examples []transaction.Memory, batch []Input) string {
	var b strings.Builder

	b.WriteString("Você é um categorizador de transações bancárias de um app de finanças pessoais.\n\n")
	b.WriteString("Tarefa:\n")
	b.WriteString("- Para cada transação abaixo, produza uma descrição limpa e legível (sem códigos, asteriscos ou números de autorização) e uma categoria.\n")
	b.WriteString("- A categoria deve ser EXATAMENTE uma destas: ")
	b.WriteString(strings.Join(transaction.Tags, ", "))
	b.WriteString(".\n\n")

	if len(examples) > 0 {
		b.WriteString("Histórico de categorizações deste usuário (siga-o quando a descrição for parecida):\n")
		for _, ex := range examples {
			fmt.Fprintf(&b, "- %q -> %s\n", ex.Description, ex.Tag)
		}
		b.WriteString("\n")
	}

	b.WriteString(promptRules)
	b.WriteString("\n\nTransações:\n")

	items := make([]promptTransaction, 0, len(batch))
	for _, in := range batch {
		item := promptTransaction{
			ExternalID:  in.ExternalID,
			Description: cleanForPrompt(in.Description),
			Amount:      in.Amount,
		}
		if in.Category != nil {
			item.RawCategory = *in.Category
		}
		items = append(items, item)
	}
	encoded, _ := json.Marshal(items)
	b.Write(encoded)

	b.WriteString("\n\nResponda SOMENTE com JSON válido, sem cercas de código e sem texto extra.\n")
	b.WriteString("O resultado deve ser um array de objetos com os campos ")
	b.WriteString(`"externalId", "cleanDescription" e "category".`)
	b.WriteString("\nA resposta deve começar com \"[\" e terminar com \"]\".\n")

	return b.String()
}

// cleanForPrompt strips control characters and collapses whitespace so raw
// bank descriptions cannot break the prompt structure.
func cleanForPrompt(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// parseModelResponse decodes the model output as a JSON array of results,
// tolerating markdown code-fence wrapping. A failure here is treated as a
// model failure by the caller.
func parseModelResponse(raw string) ([]Result, error) {
	clean := stripCodeFences(raw)

	var results []Result
	if err := json.Unmarshal([]byte(clean), &results); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	return results, nil
}

// stripCodeFences removes ```json ... ``` wrappers and any stray text around
// the JSON array when the model ignores formatting instructions.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
