package stages

import (
	"testing"

	"github.com/cognicore/lexflow/pkg/lexflow/document"
	"github.com/cognicore/lexflow/pkg/lexflow/model"
)

func TestNeuralyzerForgetAndAdd(t *testing.T) {
	doc := tokenized("Alice flew from Paris to Lyon")
	doc.Entities = []document.Entity{
		{Type: "person", Value: "Alice", Begin: 0, End: 1},
		{Type: "place", Value: "Paris", Begin: 3, End: 4},
		{Type: "noise", Value: "to", Begin: 4, End: 5},
	}

	n := NewNeuralyzer(model.English).
		ForgetEntity("person", "ALICE").
		ForgetType("noise").
		AddEntity("lyon", "place").
		AddEntity("paris", "place")
	n.Neuralyze(doc)

	if len(doc.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %+v", doc.Entities)
	}
	if doc.Entities[0].Value != "Paris" || doc.Entities[1].Value != "Lyon" {
		t.Errorf("unexpected entities: %+v", doc.Entities)
	}
	if n.Language() != model.English {
		t.Errorf("unexpected language %s", n.Language())
	}
}
