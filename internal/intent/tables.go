package intent

// Reply texts shared by several table entries.
const (
	replyHello      = "Hola, ¿cómo estás?"
	replyMorning    = "Buenos días, ¿en qué te puedo ayudar?"
	replyAfternoon  = "Buenas tardes, ¿en qué te ayudo?"
	replyEvening    = "Buenas noches, ¿en qué puedo ayudarte?"
	replyGreat      = "¡Genial! ¿En qué te puedo ayudar?"
	replyPerfectAlt = "¡Perfecto! ¿En qué te ayudo?"
	replyThanks     = "¡Con gusto! Si necesitas algo más, aquí estaré."
	replyAck        = "Perfecto, quedo atento."
	replyNoted      = "Perfecto, gracias por avisar."
	replyBye        = "¡Hasta luego! 😊"
	replySeeYou     = "¡Hasta pronto! 😊"
)

// socialReplies maps a normalized message (see textutil.Normalize) to a
// canned reply. Keys are in normalized space, so spelling variants such as
// "Holaaaa!!", "buenass" or "qué tal" collapse onto the entries below
// before lookup.
var socialReplies = map[string]string{
	// greetings
	"hola":          replyHello,
	"holi":          replyHello,
	"holis":         replyHello,
	"holita":        replyHello,
	"ola":           replyHello,
	"olas":          replyHello,
	"hello":         replyHello,
	"hey":           replyHello,
	"ey":            replyHello,
	"buenas":        replyHello,
	"buenas buenas": replyHello,

	// time-of-day greetings
	"buenos dias": replyMorning,
	"buen dia":    replyMorning,
	"bd":          replyMorning,
	"b dias":      replyMorning,

	"buenas tardes": replyAfternoon,
	"bt":            replyAfternoon,
	"b tardes":      replyAfternoon,
	"tardes":        replyAfternoon,

	"buenas noches": replyEvening,
	"bn":            replyEvening,
	"noches":        replyEvening,

	// how-are-you variants
	"que tal":      replyHello,
	"q tal":        replyHello,
	"como estas":   replyHello,
	"como andas":   replyHello,
	"como vas":     replyHello,
	"todo bien":    replyGreat,
	"todo ok":      replyGreat,
	"todo tranqui": replyPerfectAlt,

	// regional slang
	"que onda":      replyHello,
	"onda":          replyHello,
	"que mas":       replyHello,
	"que mas pues":  replyHello,
	"que hubo":      replyHello,
	"quiubo":        replyHello,
	"parce":         replyHello,
	"parcero":       replyHello,
	"wey":           replyHello,
	"che":           replyHello,
	"amigo":         replyHello,
	"que pasa":      replyHello,
	"todo bien tio": replyHello,
	"buenas tio":    replyHello,

	// thanks
	"gracias":         replyThanks,
	"muchas gracias":  replyThanks,
	"mil gracias":     replyThanks,
	"gracias totales": replyThanks,
	"thanks":          replyThanks,
	"ok gracias":      replyThanks,
	"gracias amigo":   replyThanks,
	"gracias bro":     replyThanks,

	// acknowledgements
	"vale":       replyAck,
	"ok vale":    replyAck,
	"ok":         replyAck,
	"okey":       replyAck,
	"oki":        replyAck,
	"okis":       replyAck,
	"perfecto":   replyAck,
	"excelente":  replyAck,
	"genial":     replyAck,
	"de acuerdo": replyAck,
	"entendido":  replyNoted,
	"listo":      replyAck,
	"dale":       replyAck,
	"va":         replyAck,
	"bien":       replyAck,

	// farewells
	"chau":         replyBye,
	"chao":         replyBye,
	"adios":        replyBye,
	"nos vemos":    replyBye,
	"hasta luego":  replyBye,
	"hasta pronto": replySeeYou,
	"bye":          replyBye,
	"bye bye":      replyBye,
}

// greetingKeywords marks which normalized messages count as plain greetings.
// Greeting replies are returned verbatim; any other canned reply gets the
// contact-channel suffix appended by the orchestrator.
var greetingKeywords = map[string]struct{}{
	"hola":       {},
	"buen":       {},
	"buenas":     {},
	"buenos":     {},
	"saludos":    {},
	"hey":        {},
	"holi":       {},
	"buen dia":   {},
	"que tal":    {},
	"como estas": {},
}

// courtesyPattern pairs a set of required substrings with a canned reply.
// Patterns are scanned in order; the first one whose every keyword appears
// in the normalized message wins.
type courtesyPattern struct {
	keywords []string
	reply    string
}

var courtesyPatterns = []courtesyPattern{
	{[]string{"agradecid"}, replyThanks},
	{[]string{"agradecid", "respuesta"}, replyThanks},
	{[]string{"muchas", "gracias"}, replyThanks},
	{[]string{"con", "gusto"}, replyThanks},
	{[]string{"gracias"}, replyThanks},
	{[]string{"muchisimas", "gracias"}, replyThanks},
	{[]string{"gracias", "por", "todo"}, replyThanks},
	{[]string{"gracias", "de", "nuevo"}, replyThanks},
	{[]string{"que", "pase", "buen", "dia"}, "Que tengas un excelente día."},
	{[]string{"pase", "buen", "dia"}, "Que tengas un excelente día."},
	{[]string{"que", "este", "bien"}, "Que estés muy bien."},
	{[]string{"que", "este", "muy"}, "Que estés muy bien."},
	{[]string{"todo", "claro"}, replyAck},
	{[]string{"perfecto", "gracias"}, replyAck},
	{[]string{"perfecto"}, replyAck},
	{[]string{"excelente"}, replyAck},
	{[]string{"genial"}, replyAck},
	{[]string{"gracias", "por", "la", "info"}, replyThanks},
	{[]string{"gracias", "por", "todo", "amigo"}, replyThanks},
	{[]string{"gracias", "de", "corazon"}, replyThanks},
}

// informativeMarkers are substrings whose presence means the message is
// asking for something concrete, so it must never be short-circuited as
// mere courtesy ("gracias, pero quiero saber el precio del curso").
var informativeMarkers = []string{
	"precio",
	"costo",
	"cuesta",
	"curso",
	"servicio",
	"informacion",
	"detalle",
	"solicito",
	"saber",
	"necesito",
	"puedo",
	"puedes",
	"instalar",
	"disenar",
	"diseno",
	"calcular",
	"cotizacion",
	"presupuesto",
	"proyecto",
	"consulta",
	"contacto",
	"telefono",
	"email",
	"correo",
}

// questionWords are interrogative stop-words (Spanish forms, diacritics
// already stripped by normalization) excluded from keyword extraction.
var questionWords = map[string]struct{}{
	"quien":   {},
	"quienes": {},
	"que":     {},
	"como":    {},
	"cuando":  {},
	"donde":   {},
	"por":     {},
	"para":    {},
	"cual":    {},
	"cuales":  {},
	"cuanto":  {},
	"cuantos": {},
	"cuanta":  {},
	"cuantas": {},
	"porque":  {},
}

// sourceIntentKeywords maps a source-path prefix to the trigger keywords
// that pull it into the similarity-search filter set. Order is fixed so the
// resulting filter list is deterministic.
var sourceIntentKeywords = []struct {
	prefix   string
	keywords []string
}{
	{"faq/", []string{"faq", "preguntas frecuentes", "pregunta frecuente"}},
	{"servicios/", []string{"servicio", "servicios", "contratar", "ofrecemos", "diseno", "proyecto"}},
	{"cursos/", []string{"curso", "cursos", "capacitacion", "formacion", "taller", "educacion"}},
	{"software/", []string{"software", "cype", "sap2000", "etabs", "modelacion", "cypeunext"}},
}

// courseIntentKeywords trigger the course-overview injection in retrieval.
var courseIntentKeywords = []string{
	"curso",
	"cursos",
	"capacitacion",
	"formacion",
	"taller",
	"instalaciones",
	"instalacion",
}
