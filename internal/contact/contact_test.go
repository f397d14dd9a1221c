package contact

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/safetap/api/internal/util"
)

func TestNormalizeDefaults(t *testing.T) {
	c, err := Normalize(Contact{Name: " Tita Rosa ", Number: "+63 900", Type: "FAMILY"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if c.Name != "Tita Rosa" || c.Type != TypeFamily {
		t.Fatalf("normalização inesperada: %+v", c)
	}
	if c.Priority != PriorityNormal {
		t.Fatalf("prioridade padrão deveria ser 2, veio %d", c.Priority)
	}
	if c.Icon == "" {
		t.Fatalf("ícone padrão não aplicado")
	}

	if _, err := Normalize(Contact{Name: "X", Number: "1", Type: "firefighter"}); err != ErrInvalidType {
		t.Fatalf("esperava ErrInvalidType, veio %v", err)
	}
	if _, err := Normalize(Contact{Name: "X", Number: "1", Priority: 7}); err != ErrInvalidPriority {
		t.Fatalf("esperava ErrInvalidPriority, veio %v", err)
	}
}

func TestNormalizeFieldRules(t *testing.T) {
	cases := map[string]struct {
		in    Contact
		field string
	}{
		"nome vazio":   {Contact{Name: "  ", Number: "1"}, "name"},
		"número vazio": {Contact{Name: "X", Number: ""}, "number"},
		"nome longo":   {Contact{Name: strings.Repeat("x", 81), Number: "1"}, "name"},
		"número longo": {Contact{Name: "X", Number: strings.Repeat("9", 33)}, "number"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(tc.in)
			var verr *util.ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("esperava erro em %s, veio %v", tc.field, err)
			}
		})
	}
}

func TestMemoryDirectoryCRUD(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	a, err := dir.Add(ctx, "ana", Contact{Name: "Pulis", Number: "117", Type: TypePolice, Priority: PriorityAlways})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// Duplicados são aceitos no cadastro.
	if _, err := dir.Add(ctx, "ana", Contact{Name: "Pulis", Number: "911", Type: TypePolice}); err != nil {
		t.Fatalf("add duplicado: %v", err)
	}
	if _, err := dir.Add(ctx, "bento", Contact{Name: "Mãe", Number: "1", Type: TypeFamily}); err != nil {
		t.Fatalf("add outro dono: %v", err)
	}

	list, _ := dir.List(ctx, "ana")
	if len(list) != 2 {
		t.Fatalf("esperava 2 contatos, veio %d", len(list))
	}

	a.Number = "166"
	updated, err := dir.Update(ctx, "ana", a)
	if err != nil || updated.Number != "166" {
		t.Fatalf("update: %+v %v", updated, err)
	}
	if _, err := dir.Update(ctx, "bento", a); err != ErrNotFound {
		t.Fatalf("update de outro dono deveria falhar, veio %v", err)
	}

	if err := dir.Delete(ctx, "ana", a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := dir.Delete(ctx, "ana", a.ID); err != ErrNotFound {
		t.Fatalf("delete repetido deveria falhar, veio %v", err)
	}
	list, _ = dir.List(ctx, "ana")
	if len(list) != 1 {
		t.Fatalf("esperava 1 contato após delete, veio %d", len(list))
	}
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	if err := Seed(ctx, dir, "ana"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := Seed(ctx, dir, "ana"); err != nil {
		t.Fatalf("seed repetido: %v", err)
	}
	list, _ := dir.List(ctx, "ana")
	if len(list) != len(DefaultContacts()) {
		t.Fatalf("seed duplicou contatos: %d", len(list))
	}
}
