package strata

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmitChain(_ *testing.T) {
	// Should not panic
	emitChainAttached(context.Background(), "user", "password", "hash", 0)
	emitChainAttached(context.Background(), "user", "password", "mask", -1)
	emitChainReordered(context.Background(), "user", "password", "encrypt", "hash")
	emitTypeFrozen(context.Background(), "user", 3, 2)
}

func TestEmitField(_ *testing.T) {
	emitFieldSet(context.Background(), "user", "email", 1)
	emitFieldFloated(context.Background(), "article", "title")
	emitFieldGet(context.Background(), "user", "email", true)
	emitFieldGet(context.Background(), "user", "password", false)
}

func TestEmitBind(_ *testing.T) {
	emitBindLock(context.Background(), "article", "localize", 2)
	emitBindUnlock(context.Background(), "article", "localize", 0)
}

func TestEmitEntity_Success(_ *testing.T) {
	emitEntityMaterialized(context.Background(), "user", "storage", 4, nil)
	emitEntitySerialized(context.Background(), "user", "plain", 3, nil)
}

func TestEmitEntity_Error(_ *testing.T) {
	emitEntityMaterialized(context.Background(), "user", "plain", 0, errors.New("test error"))
	emitEntitySerialized(context.Background(), "user", "storage", 0, errors.New("test error"))
}

func TestEmitModel(_ *testing.T) {
	emitModelStart(context.Background(), "insert", "user", "user")
	emitModelComplete(context.Background(), "insert", "user", "user", 5*time.Millisecond, nil)
	emitModelComplete(context.Background(), "get", "user", "user", time.Millisecond, ErrNotFound)
}

func TestSignalVariables(t *testing.T) {
	signals := []struct {
		name   string
		signal interface{}
	}{
		{"SignalChainAttached", SignalChainAttached},
		{"SignalChainReordered", SignalChainReordered},
		{"SignalTypeFrozen", SignalTypeFrozen},
		{"SignalFieldSet", SignalFieldSet},
		{"SignalFieldFloated", SignalFieldFloated},
		{"SignalFieldGet", SignalFieldGet},
		{"SignalBindLock", SignalBindLock},
		{"SignalBindUnlock", SignalBindUnlock},
		{"SignalEntityMaterialized", SignalEntityMaterialized},
		{"SignalEntitySerialized", SignalEntitySerialized},
		{"SignalModelOperationStart", SignalModelOperationStart},
		{"SignalModelOperation", SignalModelOperation},
	}

	for _, s := range signals {
		if s.signal == nil {
			t.Errorf("%s is nil", s.name)
		}
	}
}

func TestKeyVariables(t *testing.T) {
	keys := []struct {
		name string
		key  interface{}
	}{
		{"KeyEntity", KeyEntity},
		{"KeyField", KeyField},
		{"KeyTransformation", KeyTransformation},
		{"KeyDisplaced", KeyDisplaced},
		{"KeySource", KeySource},
		{"KeyOperation", KeyOperation},
		{"KeyCollection", KeyCollection},
		{"KeyPosition", KeyPosition},
		{"KeyFieldCount", KeyFieldCount},
		{"KeyChainCount", KeyChainCount},
		{"KeyChainLength", KeyChainLength},
		{"KeyAvailable", KeyAvailable},
		{"KeyDuration", KeyDuration},
		{"KeyError", KeyError},
	}

	for _, k := range keys {
		if k.key == nil {
			t.Errorf("%s is nil", k.name)
		}
	}
}
