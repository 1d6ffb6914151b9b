package schema_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/PublicLifeLab/gehl-backend/internal/schema"
	"github.com/PublicLifeLab/gehl-backend/internal/utils"
)

func TestFieldNamesCanonicalOrder(t *testing.T) {
	want := []string{
		"gender", "age", "mode", "posture", "activities", "groups",
		"object", "location", "note", "creation_date", "last_updated",
	}
	if got := schema.FieldNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLookupUnknownField(t *testing.T) {
	_, err := schema.Lookup("weather")
	if !errors.Is(err, schema.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if !errors.Is(err, utils.ErrValidation) {
		t.Errorf("expected unknown field to classify as a validation error")
	}
}

func TestRemapAgeLabels(t *testing.T) {
	age, err := schema.Lookup(schema.FieldAge)
	if err != nil {
		t.Fatalf("Lookup(age): %v", err)
	}

	cases := map[string]string{
		"child":   "0-14",
		"young":   "15-24",
		"adult":   "25-64",
		"elderly": "65+",
		"Child":   "0-14",
	}
	for label, want := range cases {
		got, err := age.Remap(label)
		if err != nil {
			t.Errorf("Remap(%q): %v", label, err)
			continue
		}
		if got != want {
			t.Errorf("Remap(%q): expected %q, got %q", label, want, got)
		}
	}

	if _, err := age.Remap("teen"); !errors.Is(err, schema.ErrInvalidValue) {
		t.Errorf("expected teen to be rejected with ErrInvalidValue, got %v", err)
	}
}

func TestRemapGroupLabels(t *testing.T) {
	groups, err := schema.Lookup(schema.FieldGroups)
	if err != nil {
		t.Fatalf("Lookup(groups): %v", err)
	}
	got, err := groups.Remap("crowd")
	if err != nil {
		t.Fatalf("Remap(crowd): %v", err)
	}
	if got != "group_8+" {
		t.Errorf("expected group_8+, got %q", got)
	}
	if _, err := groups.Remap("group_8+"); err == nil {
		t.Errorf("expected stored value to be rejected as an input label")
	}
}

func TestActivitiesVocabulary(t *testing.T) {
	activities, err := schema.Lookup(schema.FieldActivities)
	if err != nil {
		t.Fatalf("Lookup(activities): %v", err)
	}
	if got, err := activities.Canonical("Recreation_Active"); err != nil || got != "recreation_active" {
		t.Errorf("expected recreation_active, got %q (err %v)", got, err)
	}
	if _, err := activities.Canonical("sleeping"); !errors.Is(err, schema.ErrInvalidValue) {
		t.Errorf("expected sleeping to be rejected, got %v", err)
	}
	if len(activities.StoredValues()) != 8 {
		t.Errorf("expected 8 activities, got %v", activities.StoredValues())
	}
}

// The DDL templates are written by hand; make sure their CHECK lists never
// drift from the vocabulary.
func TestCheckConstraintsMatchVocabulary(t *testing.T) {
	ddl, err := schema.CreateTableStatement(testStudyID, schema.ShapeFull)
	if err != nil {
		t.Fatalf("CreateTableStatement: %v", err)
	}
	for _, name := range []string{schema.FieldGender, schema.FieldAge, schema.FieldGroups} {
		field, err := schema.Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", name, err)
		}
		quoted := make([]string, 0)
		for _, v := range field.StoredValues() {
			quoted = append(quoted, "'"+v+"'")
		}
		want := name + " IN (" + strings.Join(quoted, ", ") + ")"
		if !strings.Contains(ddl, want) {
			t.Errorf("expected DDL to contain %q\n%s", want, ddl)
		}
	}
}
