package stages

import (
	"strings"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
)

type entityKey struct {
	typ   string
	value string
}

// Neuralyzer makes the pipeline forget or learn entities after all stages ran.
type Neuralyzer struct {
	lang        model.Language
	forget      map[entityKey]struct{}
	forgetTypes map[string]struct{}
	add         map[string]string // token norm → entity type
}

// NewNeuralyzer creates an empty neuralyzer for lang (model.Any for all languages).
func NewNeuralyzer(lang model.Language) *Neuralyzer {
	return &Neuralyzer{
		lang:        lang,
		forget:      make(map[entityKey]struct{}),
		forgetTypes: make(map[string]struct{}),
		add:         make(map[string]string),
	}
}

// Language implements process.Neuralyzer.
func (n *Neuralyzer) Language() model.Language { return n.lang }

// ForgetEntity drops entities of the given type whose value matches (case-insensitive).
func (n *Neuralyzer) ForgetEntity(typ, value string) *Neuralyzer {
	n.forget[entityKey{typ: typ, value: strings.ToLower(value)}] = struct{}{}
	return n
}

// ForgetType drops every entity of the given type.
func (n *Neuralyzer) ForgetType(typ string) *Neuralyzer {
	n.forgetTypes[typ] = struct{}{}
	return n
}

// AddEntity annotates every token whose norm equals value with typ.
func (n *Neuralyzer) AddEntity(value, typ string) *Neuralyzer {
	n.add[strings.ToLower(value)] = typ
	return n
}

// Neuralyze implements process.Neuralyzer.
func (n *Neuralyzer) Neuralyze(doc *document.Document) {
	kept := doc.Entities[:0]
	for _, e := range doc.Entities {
		if _, ok := n.forgetTypes[e.Type]; ok {
			continue
		}
		if _, ok := n.forget[entityKey{typ: e.Type, value: strings.ToLower(e.Value)}]; ok {
			continue
		}
		kept = append(kept, e)
	}
	doc.Entities = kept

	if len(n.add) == 0 {
		return
	}
	for i, tok := range doc.Tokens {
		typ, ok := n.add[tok.Norm]
		if !ok || hasEntity(doc.Entities, typ, i) {
			continue
		}
		doc.Entities = append(doc.Entities, document.Entity{Type: typ, Value: tok.Value, Begin: i, End: i + 1})
	}
}

func hasEntity(ents []document.Entity, typ string, tok int) bool {
	for _, e := range ents {
		if e.Type == typ && e.Begin <= tok && tok < e.End {
			return true
		}
	}
	return false
}
