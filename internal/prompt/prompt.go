// Package prompt assembles the generation prompt: fixed Spanish system
// instructions, the recent conversation window, the retrieved context, and
// the new question, in a stable section order with hard size limits.
package prompt

import (
	"fmt"
	"strings"

	"github.com/medifestructuras/asistente/internal/history"
)

// Window and size limits for prompt assembly. Truncation counts runes so a
// cut never splits a UTF-8 sequence.
const (
	// MaxHistoryTurns is how many recent turns are rendered into the
	// conversation window.
	MaxHistoryTurns = 4

	// maxHistoryChars bounds the rendered history; overflow drops the
	// OLDEST text (the tail of the window is what matters).
	maxHistoryChars = 800

	// MaxContextChars bounds the joined context; overflow drops the END
	// (chunks are ordered best-first, so the head is what matters).
	MaxContextChars = 2200
)

// SystemInstructions anchor every generated answer to the retrieved
// context.
const SystemInstructions = "Eres el asistente virtual oficial de Medifestructuras (www.medifestructuras.com). " +
	"Responde siempre usando solo la informacion que aparece dentro del CONTEXTO y se muy conciso. " +
	"Si no encuentras la respuesta en el CONTEXTO, deja claro que no la tienes y sugiere visitar " +
	"la pagina web, escribir a eduardo.mediavilla@medifestructuras.com o llamar al +357 96863257. " +
	"Evita inventar precios, cursos o servicios que no esten citados. " +
	"Si el usuario vuelve a preguntar o dice que no entendio, reformula la respuesta con un lenguaje mas simple, ejemplos o pasos. " +
	"El historial de la conversacion solo sirve para mantener el tono; no lo uses como fuente de hechos."

// FallbackResponse is the verbatim answer returned when retrieval produced
// no usable context. It never goes through the model.
const FallbackResponse = "No tengo suficiente informacion en la base de conocimiento para responder eso. " +
	"Por favor revisa www.medifestructuras.com o contactanos a eduardo.mediavilla@medifestructuras.com " +
	"o por telefono al +357 96863257."

// CourseGuidelines is added as an extra section when the question is about
// courses.
const CourseGuidelines = "Cuando la pregunta sea sobre cursos, confirma que Medif Estructuras ofrece 9 cursos en total " +
	"(8 de estructuras y 1 de instalaciones), menciona primero esa visión general, luego describe un curso específico " +
	"documentado en la base de conocimientos y cierra con el llamado a la acción sin negar cursos ni decir “no tengo información”."

// emptyHistoryPlaceholder keeps the conversation section present even on
// the first turn, so the model never sees a dangling header.
const emptyHistoryPlaceholder = "(no previous messages)"

// FormatHistory renders the most recent turns as "Usuario:"/"Asistente:"
// lines and also returns the content of the latest assistant turn, which
// feeds the repeated-question block. The rendered window is tail-truncated
// to keep its newest text.
func FormatHistory(turns []history.Turn) (historyText, lastAssistantReply string) {
	window := turns
	if len(window) > MaxHistoryTurns {
		window = window[len(window)-MaxHistoryTurns:]
	}

	lines := make([]string, 0, len(window))
	for _, turn := range window {
		prefix := "Asistente"
		if turn.Role == history.RoleUser {
			prefix = "Usuario"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", prefix, strings.TrimSpace(turn.Content)))
	}

	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == history.RoleAssistant {
			lastAssistantReply = turns[i].Content
			break
		}
	}

	historyText = emptyHistoryPlaceholder
	if len(lines) > 0 {
		historyText = strings.Join(lines, "\n")
	}
	return truncateTail(historyText, maxHistoryChars), lastAssistantReply
}

// PreviousAnswerBlock renders the reformulation instruction around the last
// assistant reply. Empty input yields an empty block, which Build omits.
func PreviousAnswerBlock(lastAssistantReply string) string {
	reply := strings.TrimSpace(lastAssistantReply)
	if reply == "" {
		return ""
	}
	return "Tu respuesta anterior fue:\n\"\"\"\n" + reply + "\n\"\"\"\n" +
		"El usuario volvio a consultar o indico que no entendio. " +
		"No repitas la misma redaccion ni estructura; explicalo con lenguaje mas simple, pasos o ejemplos, pero mantente preciso."
}

// JoinContext joins chunks best-first and head-truncates the result to the
// context budget.
func JoinContext(chunks []string) string {
	return truncateHead(strings.Join(chunks, "\n\n"), MaxContextChars)
}

// Build assembles the final prompt. Sections appear in a fixed order,
// joined by blank lines; empty sections are omitted entirely rather than
// leaving blank headers.
func Build(previousAnswerBlock, historyText, context, userMessage, courseInstruction string) string {
	sections := []string{
		SystemInstructions,
		courseInstruction,
		previousAnswerBlock,
		"Conversacion hasta ahora:\n" + historyText,
		"CONTEXTO:\n" + context,
		"NUEVA PREGUNTA DEL USUARIO:\n" + userMessage,
		"RESPUESTA:",
	}

	kept := sections[:0]
	for _, section := range sections {
		if section != "" {
			kept = append(kept, section)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n\n"))
}

// truncateHead keeps the first limit runes.
func truncateHead(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// truncateTail keeps the last limit runes.
func truncateTail(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[len(runes)-limit:])
}
