package settings

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/itellico/mono/internal/models"
)

func TestValidateValue(t *testing.T) {
	cases := []struct {
		typ   models.SettingType
		raw   string
		valid bool
	}{
		{models.SettingBoolean, `true`, true},
		{models.SettingBoolean, `"true"`, false},
		{models.SettingString, `"dark"`, true},
		{models.SettingString, `42`, false},
		{models.SettingInteger, `42`, true},
		{models.SettingInteger, `4.5`, false},
		{models.SettingInteger, `"42"`, false},
		{models.SettingJSON, `{"nested":{"ok":true}}`, true},
		{models.SettingJSON, `{broken`, false},
	}
	for _, c := range cases {
		err := ValidateValue(c.typ, json.RawMessage(c.raw))
		if c.valid && err != nil {
			t.Fatalf("ValidateValue(%s, %s) = %v, want nil", c.typ, c.raw, err)
		}
		if !c.valid && !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("ValidateValue(%s, %s) = %v, want ErrInvalidValue", c.typ, c.raw, err)
		}
	}
}

func TestValidateValueUnknownType(t *testing.T) {
	if err := ValidateValue("float", json.RawMessage(`1.5`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
