package strata

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestEncrypt_RoundTrip(t *testing.T) {
	enc := mustEncrypt(t)
	c := &Cell{}

	locked, err := enc.Lock(c, nil, "hello world")
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	tuple, ok := locked.([]any)
	if !ok || len(tuple) != 3 {
		t.Fatalf("Lock() = %#v, want [ciphertext iv tag]", locked)
	}

	plain, err := enc.Unlock(c, locked)
	if err != nil {
		t.Fatalf("Unlock() error: %v", err)
	}
	if plain != "hello world" {
		t.Errorf("Unlock() = %v, want hello world", plain)
	}
}

func TestEncrypt_FreshIV(t *testing.T) {
	enc := mustEncrypt(t)
	a, _ := enc.Lock(&Cell{}, nil, "same")
	b, _ := enc.Lock(&Cell{}, nil, "same")
	if reflect.DeepEqual(a, b) {
		t.Error("two locks of the same value should differ")
	}
}

func TestEncrypt_Algorithms(t *testing.T) {
	algos := []EncryptAlgo{
		EncryptAES128GCM, EncryptAES192GCM, EncryptAES256GCM, EncryptAES256CBC,
		EncryptChaCha20Poly1305, EncryptXChaCha20Poly1305,
	}
	for _, algo := range algos {
		t.Run(string(algo), func(t *testing.T) {
			key, err := GenerateKey(algo)
			if err != nil {
				t.Fatalf("GenerateKey() error: %v", err)
			}
			if len(key) != KeySize(algo) {
				t.Fatalf("GenerateKey() = %d bytes, want %d", len(key), KeySize(algo))
			}
			enc, err := NewEncrypt(key, WithEncryptAlgorithm(algo))
			if err != nil {
				t.Fatalf("NewEncrypt() error: %v", err)
			}

			locked, err := enc.Lock(&Cell{}, nil, "secret data")
			if err != nil {
				t.Fatalf("Lock() error: %v", err)
			}
			got, err := enc.Unlock(&Cell{}, locked)
			if err != nil {
				t.Fatalf("Unlock() error: %v", err)
			}
			if got != "secret data" {
				t.Errorf("Unlock() = %v", got)
			}
		})
	}
}

func TestEncrypt_CBCHasNoTag(t *testing.T) {
	enc := mustEncrypt(t, WithEncryptAlgorithm(EncryptAES256CBC))

	locked, _ := enc.Lock(&Cell{}, nil, "abc")
	if tuple := locked.([]any); len(tuple) != 2 {
		t.Errorf("CBC tuple = %v, want 2 elements", tuple)
	}

	typed, _ := enc.Lock(&Cell{}, nil, 42)
	tuple := typed.([]any)
	if len(tuple) != 4 || tuple[2] != "" {
		t.Errorf("CBC typed tuple = %v, want empty tag slot", tuple)
	}
	if got, err := enc.Unlock(&Cell{}, typed); err != nil || got != 42 {
		t.Errorf("Unlock() = %v (%T), %v; want int 42", got, got, err)
	}
}

func TestEncrypt_WrongKey(t *testing.T) {
	enc := mustEncrypt(t)
	other, err := NewEncrypt([]byte("another-32-byte-key-for-aes-256!"))
	if err != nil {
		t.Fatal(err)
	}

	locked, _ := enc.Lock(&Cell{}, nil, "secret")
	if _, err := other.Unlock(&Cell{}, locked); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Unlock() with wrong key error = %v, want ErrDecrypt", err)
	}
}

func TestEncrypt_TamperedOrMalformed(t *testing.T) {
	enc := mustEncrypt(t)
	locked, _ := enc.Lock(&Cell{}, nil, "secret")
	tuple := append([]any(nil), locked.([]any)...)
	tuple[0] = "AAAA" + tuple[0].(string)[4:]

	cases := map[string]any{
		"tampered":     tuple,
		"not a slice":  "ciphertext",
		"one element":  []any{"abc"},
		"non-string":   []any{"abc", 1},
		"bad base64":   []any{"!!", "!!"},
		"short iv":     []any{"AAAA", "AAAA", "AAAA"},
		"five entries": []any{"a", "b", "c", "d", "e"},
	}
	for name, stored := range cases {
		if _, err := enc.Unlock(&Cell{}, stored); !errors.Is(err, ErrDecrypt) {
			t.Errorf("%s: Unlock() error = %v, want ErrDecrypt", name, err)
		}
	}
}

func TestEncrypt_StringTupleFromCodec(t *testing.T) {
	enc := mustEncrypt(t)
	locked, _ := enc.Lock(&Cell{}, nil, "x")
	tuple := locked.([]any)

	asStrings := make([]string, len(tuple))
	for i, v := range tuple {
		asStrings[i] = v.(string)
	}
	if got, err := enc.Unlock(&Cell{}, asStrings); err != nil || got != "x" {
		t.Errorf("Unlock([]string) = %v, %v", got, err)
	}
}

func TestEncrypt_PreservesTypes(t *testing.T) {
	enc := mustEncrypt(t)
	when := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"string", "text", "text"},
		{"bool", true, true},
		{"float64", 1.5, 1.5},
		{"int", 42, 42},
		{"int64", int64(-7), int64(-7)},
		{"uint16", uint16(9), uint16(9)},
		{"float32", float32(2.5), float32(2.5)},
		{"bytes", []byte{0, 1, 2}, []byte{0, 1, 2}},
		{"slice", []any{"a", 1}, []any{"a", 1}},
		{"string slice", []string{"a", "b"}, []string{"a", "b"}},
		{"int slice", []int{1, 2}, []int{1, 2}},
		{"float slice", []float64{0.5}, []float64{0.5}},
		{"empty slice", []string{}, []string{}},
		{"nil slice", []string(nil), []string(nil)},
		{"nested slice", [][]uint16{{1}, {2, 3}}, [][]uint16{{1}, {2, 3}}},
		{"array", [2]int8{-1, 1}, [2]int8{-1, 1}},
		{"string map", map[string]string{"a": "b"}, map[string]string{"a": "b"}},
		{"int keys", map[int]bool{7: true}, map[int]bool{7: true}},
		{"map of slices", map[string][]int{"n": {1}}, map[string][]int{"n": {1}}},
		{"any slice of typed", []any{[]string{"x"}}, []any{[]string{"x"}}},
		{"map", map[string]any{"n": int32(3), "s": "x"}, map[string]any{"n": int32(3), "s": "x"}},
		{"nested", map[string]any{"tags": []any{uint8(1)}, "ok": false}, map[string]any{"tags": []any{uint8(1)}, "ok": false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locked, err := enc.Lock(&Cell{}, nil, tt.value)
			if err != nil {
				t.Fatalf("Lock() error: %v", err)
			}
			got, err := enc.Unlock(&Cell{}, locked)
			if err != nil {
				t.Fatalf("Unlock() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Unlock() = %#v, want %#v", got, tt.want)
			}
		})
	}

	locked, _ := enc.Lock(&Cell{}, nil, when)
	got, err := enc.Unlock(&Cell{}, locked)
	if err != nil {
		t.Fatal(err)
	}
	if ts, ok := got.(time.Time); !ok || !ts.Equal(when) {
		t.Errorf("Unlock(time) = %#v, want %v", got, when)
	}
}

func TestEncrypt_StructsComeBackAsMaps(t *testing.T) {
	type token struct {
		Value string `json:"value"`
		Scope string `json:"scope"`
	}
	enc := mustEncrypt(t)

	locked, err := enc.Lock(&Cell{}, nil, &token{Value: "t", Scope: "read"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := enc.Unlock(&Cell{}, locked)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"value": "t", "scope": "read"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unlock() = %#v, want %#v", got, want)
	}
}

func TestEncrypt_Unencodable(t *testing.T) {
	enc := mustEncrypt(t)
	if _, err := enc.Lock(&Cell{}, nil, make(chan int)); !errors.Is(err, ErrEncrypt) {
		t.Errorf("Lock(chan) error = %v, want ErrEncrypt", err)
	}
}

func TestEncrypt_Nil(t *testing.T) {
	enc := mustEncrypt(t)
	if v, err := enc.Lock(&Cell{}, nil, nil); v != nil || err != nil {
		t.Errorf("Lock(nil) = %v, %v", v, err)
	}
	if v, err := enc.Unlock(&Cell{}, nil); v != nil || err != nil {
		t.Errorf("Unlock(nil) = %v, %v", v, err)
	}
}

func TestNewEncrypt_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  []byte
		opts []EncryptOption
		want error
	}{
		{"short key", []byte("short"), nil, ErrInvalidKey},
		{"aes-128 with 32 bytes", testKey, []EncryptOption{WithEncryptAlgorithm(EncryptAES128GCM)}, ErrInvalidKey},
		{"unknown algorithm", testKey, []EncryptOption{WithEncryptAlgorithm("rot13")}, ErrInvalidAlgorithm},
		{"cbc iv", testKey, []EncryptOption{WithEncryptAlgorithm(EncryptAES256CBC), WithIVSize(12)}, ErrInvalidIVSize},
		{"chacha iv", testKey, []EncryptOption{WithEncryptAlgorithm(EncryptChaCha20Poly1305), WithIVSize(16)}, ErrInvalidIVSize},
		{"negative iv", testKey, []EncryptOption{WithIVSize(-1)}, ErrInvalidIVSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncrypt(tt.key, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewEncrypt() error = %v, want %v", err, tt.want)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("NewEncrypt() error = %T, want *ConfigError", err)
			}
		})
	}
}

func TestEncrypt_GCMCustomIV(t *testing.T) {
	enc := mustEncrypt(t, WithIVSize(12))
	locked, _ := enc.Lock(&Cell{}, nil, "x")
	if got, err := enc.Unlock(&Cell{}, locked); err != nil || got != "x" {
		t.Errorf("Unlock() = %v, %v", got, err)
	}
	if _, err := mustEncrypt(t).Unlock(&Cell{}, locked); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Unlock() with 16 byte iv config error = %v, want ErrDecrypt", err)
	}
}

func TestGenerateKey_Unknown(t *testing.T) {
	if _, err := GenerateKey("rot13"); !errors.Is(err, ErrInvalidAlgorithm) {
		t.Errorf("GenerateKey(rot13) error = %v, want ErrInvalidAlgorithm", err)
	}
	a, _ := GenerateKey(EncryptAES256GCM)
	b, _ := GenerateKey(EncryptAES256GCM)
	if bytes.Equal(a, b) {
		t.Error("GenerateKey() returned the same key twice")
	}
}
