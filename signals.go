package strata

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for pipeline events.
var (
	SignalChainAttached       = capitan.NewSignal("strata.chain.attached", "Transformation attached to a field chain")
	SignalChainReordered      = capitan.NewSignal("strata.chain.reordered", "Two-way transformation inserted before a terminal one-way transformation")
	SignalTypeFrozen          = capitan.NewSignal("strata.type.frozen", "Entity type chains became immutable")
	SignalFieldSet            = capitan.NewSignal("strata.field.set", "Field value locked and stored")
	SignalFieldFloated        = capitan.NewSignal("strata.field.floated", "Field value held until arguments are bound")
	SignalFieldGet            = capitan.NewSignal("strata.field.get", "Field value read through its chain")
	SignalBindLock            = capitan.NewSignal("strata.bind.lock", "Arguments bound and fields re-encoded")
	SignalBindUnlock          = capitan.NewSignal("strata.bind.unlock", "Arguments bound and floating values flushed")
	SignalEntityMaterialized  = capitan.NewSignal("strata.entity.materialized", "Entity materialized from storage or plain values")
	SignalEntitySerialized    = capitan.NewSignal("strata.entity.serialized", "Entity serialized to storage or plain values")
	SignalModelOperationStart = capitan.NewSignal("strata.model.start", "Model operation beginning")
	SignalModelOperation      = capitan.NewSignal("strata.model.complete", "Model operation finished")
)

// Keys for typed event data.
var (
	KeyEntity         = capitan.NewStringKey("entity")
	KeyField          = capitan.NewStringKey("field")
	KeyTransformation = capitan.NewStringKey("transformation")
	KeyDisplaced      = capitan.NewStringKey("displaced")
	KeySource         = capitan.NewStringKey("source")
	KeyOperation      = capitan.NewStringKey("operation")
	KeyCollection     = capitan.NewStringKey("collection")
	KeyPosition       = capitan.NewIntKey("position")
	KeyFieldCount     = capitan.NewIntKey("field_count")
	KeyChainCount     = capitan.NewIntKey("chain_count")
	KeyChainLength    = capitan.NewIntKey("chain_length")
	KeyAvailable      = capitan.NewIntKey("available")
	KeyDuration       = capitan.NewDurationKey("duration")
	KeyError          = capitan.NewErrorKey("error")
)

func emitChainAttached(ctx context.Context, entity, field, transformation string, pos int) {
	capitan.Emit(ctx, SignalChainAttached,
		KeyEntity.Field(entity),
		KeyField.Field(field),
		KeyTransformation.Field(transformation),
		KeyPosition.Field(pos),
	)
}

// emitChainReordered is the diagnostic for a two-way transformation placed
// ahead of an already attached one-way transformation.
func emitChainReordered(ctx context.Context, entity, field, transformation, displaced string) {
	capitan.Emit(ctx, SignalChainReordered,
		KeyEntity.Field(entity),
		KeyField.Field(field),
		KeyTransformation.Field(transformation),
		KeyDisplaced.Field(displaced),
	)
}

func emitTypeFrozen(ctx context.Context, entity string, fields, chains int) {
	capitan.Emit(ctx, SignalTypeFrozen,
		KeyEntity.Field(entity),
		KeyFieldCount.Field(fields),
		KeyChainCount.Field(chains),
	)
}

func emitFieldSet(ctx context.Context, entity, field string, chainLen int) {
	capitan.Emit(ctx, SignalFieldSet,
		KeyEntity.Field(entity),
		KeyField.Field(field),
		KeyChainLength.Field(chainLen),
	)
}

func emitFieldFloated(ctx context.Context, entity, field string) {
	capitan.Emit(ctx, SignalFieldFloated,
		KeyEntity.Field(entity),
		KeyField.Field(field),
	)
}

func emitFieldGet(ctx context.Context, entity, field string, available bool) {
	a := 0
	if available {
		a = 1
	}
	capitan.Emit(ctx, SignalFieldGet,
		KeyEntity.Field(entity),
		KeyField.Field(field),
		KeyAvailable.Field(a),
	)
}

func emitBindLock(ctx context.Context, entity, transformation string, fields int) {
	capitan.Emit(ctx, SignalBindLock,
		KeyEntity.Field(entity),
		KeyTransformation.Field(transformation),
		KeyFieldCount.Field(fields),
	)
}

func emitBindUnlock(ctx context.Context, entity, transformation string, fields int) {
	capitan.Emit(ctx, SignalBindUnlock,
		KeyEntity.Field(entity),
		KeyTransformation.Field(transformation),
		KeyFieldCount.Field(fields),
	)
}

func emitEntityMaterialized(ctx context.Context, entity, source string, fields int, err error) {
	f := entityFields(entity, source, fields)
	if err != nil {
		f = append(f, KeyError.Field(err))
		capitan.Error(ctx, SignalEntityMaterialized, f...)
		return
	}
	capitan.Emit(ctx, SignalEntityMaterialized, f...)
}

func emitEntitySerialized(ctx context.Context, entity, target string, fields int, err error) {
	f := entityFields(entity, target, fields)
	if err != nil {
		f = append(f, KeyError.Field(err))
		capitan.Error(ctx, SignalEntitySerialized, f...)
		return
	}
	capitan.Emit(ctx, SignalEntitySerialized, f...)
}

func entityFields(entity, source string, fields int) []capitan.Field {
	return []capitan.Field{
		KeyEntity.Field(entity),
		KeySource.Field(source),
		KeyFieldCount.Field(fields),
	}
}

func emitModelStart(ctx context.Context, op, entity, collection string) {
	capitan.Emit(ctx, SignalModelOperationStart,
		KeyOperation.Field(op),
		KeyEntity.Field(entity),
		KeyCollection.Field(collection),
	)
}

func emitModelComplete(ctx context.Context, op, entity, collection string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyOperation.Field(op),
		KeyEntity.Field(entity),
		KeyCollection.Field(collection),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalModelOperation, fields...)
	} else {
		capitan.Emit(ctx, SignalModelOperation, fields...)
	}
}
