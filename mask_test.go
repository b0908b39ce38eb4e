package strata

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestBuiltinMaskers(t *testing.T) {
	tests := []struct {
		mt       MaskType
		input    string
		expected string
	}{
		{MaskSSN, "123-45-6789", "***-**-6789"},
		{MaskSSN, "123456789", "***-**-6789"},
		{MaskSSN, "123", "***"}, // Too short
		{MaskEmail, "alice@example.com", "a***@example.com"},
		{MaskEmail, "a@b.com", "a***@b.com"},
		{MaskEmail, "noatsign", "********"},
		{MaskEmail, "@example.com", "************"},
		{MaskPhone, "(555) 123-4567", "***-***-4567"},
		{MaskPhone, "5551234567", "***-***-4567"},
		{MaskPhone, "123-4567", "***-4567"},
		{MaskPhone, "123", "***"},
		{MaskCard, "4111111111111111", "************1111"},
		{MaskCard, "4111 1111 1111 1111", "************1111"},
		{MaskCard, "123", "***"},
		{MaskIP, "192.168.1.100", "192.168.xxx.xxx"},
		{MaskIP, "2001:db8:85a3::8a2e:370:7334", "2001:db8:xxxx:xxxx:xxxx:xxxx:xxxx"},
		{MaskIP, "localhost", "*********"},
		{MaskName, "John Smith", "J*** S****"},
		{MaskName, "Zoë", "Z**"},
		{MaskName, "", ""},
	}

	for _, tt := range tests {
		m, ok := BuiltinMasker(tt.mt)
		if !ok {
			t.Fatalf("BuiltinMasker(%s) not found", tt.mt)
		}
		if got := m.Mask(tt.input); got != tt.expected {
			t.Errorf("%s(%q) = %q, want %q", tt.mt, tt.input, got, tt.expected)
		}
	}
}

func TestNewMask_Unknown(t *testing.T) {
	_, err := NewMask("passport")
	if !errors.Is(err, ErrInvalidTag) {
		t.Errorf("NewMask(passport) error = %v, want ErrInvalidTag", err)
	}
}

func TestMask_ToPlain(t *testing.T) {
	ctx := context.Background()
	mask, err := NewMask(MaskEmail)
	if err != nil {
		t.Fatal(err)
	}
	et := mustDefine(t, NewRegistry(), "user", WithFields("age"))
	et.MustAttach("email", mask)
	et.MustAttach("nickname", NewMaskWith("upper", MaskerFunc(strings.ToUpper)))
	et.MustAttach("ssn", NewRedact("[REDACTED]"))
	et.MustAttach("age", NewRedact("[REDACTED]"))

	e, err := et.FromPlain(ctx, map[string]any{
		"email":    "alice@example.com",
		"nickname": "ally",
		"ssn":      "123-45-6789",
		"age":      30,
	})
	if err != nil {
		t.Fatal(err)
	}

	plain, err := e.ToPlain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"email":    "a***@example.com",
		"nickname": "ALLY",
		"ssn":      "[REDACTED]",
		"age":      "[REDACTED]",
	}
	if !reflect.DeepEqual(plain, want) {
		t.Errorf("ToPlain() = %v, want %v", plain, want)
	}

	doc, err := e.ToStorage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if doc["email"] != "alice@example.com" || doc["ssn"] != "123-45-6789" {
		t.Errorf("stored values should be untouched, got %v", doc)
	}
	if v, _ := e.Get("email"); v != "alice@example.com" {
		t.Errorf("Get() = %v, masking applies to plain output only", v)
	}
}

func TestMask_NonStringAndMissing(t *testing.T) {
	ctx := context.Background()
	mask, _ := NewMask(MaskCard)
	et := mustDefine(t, NewRegistry(), "payment")
	et.MustAttach("card", mask)
	et.MustAttach("note", NewRedact("***"))

	e, err := et.FromPlain(ctx, map[string]any{"card": 4111111111111111})
	if err != nil {
		t.Fatal(err)
	}
	plain, err := e.ToPlain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if plain["card"] != 4111111111111111 {
		t.Errorf("non-string value should pass through, got %v", plain["card"])
	}
	if _, ok := plain["note"]; ok {
		t.Error("Redact should not add a field that has no value")
	}
}

func TestMask_AfterDecrypt(t *testing.T) {
	ctx := context.Background()
	mask, _ := NewMask(MaskSSN)
	et := mustDefine(t, NewRegistry(), "user")
	et.MustAttach("ssn", mustEncrypt(t)).MustAttach("ssn", mask)

	e, err := et.FromPlain(ctx, map[string]any{"ssn": "123-45-6789"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Stored("ssn").([]any); !ok {
		t.Fatalf("Stored() = %T, want ciphertext", e.Stored("ssn"))
	}
	plain, err := e.ToPlain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if plain["ssn"] != "***-**-6789" {
		t.Errorf("ToPlain() ssn = %v", plain["ssn"])
	}
}
