package strata

import (
	"errors"
	"reflect"
	"testing"
)

func chainIDs(c *Chain) []string {
	var ids []string
	for _, e := range c.Entries() {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestRegistry_Define(t *testing.T) {
	reg := NewRegistry()
	mustDefine(t, reg, "user")
	mustDefine(t, reg, "account")

	if _, err := reg.Define("user"); !errors.Is(err, ErrDuplicateType) {
		t.Errorf("Define(duplicate) error = %v, want ErrDuplicateType", err)
	}
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"account", "user"}) {
		t.Errorf("Names() = %v", got)
	}
	if _, ok := reg.Lookup("user"); !ok {
		t.Error("Lookup(user) not found")
	}
	if _, err := reg.MustLookup("nobody"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("MustLookup(nobody) error = %v, want ErrUnknownType", err)
	}
}

func TestDefine_PrimaryKey(t *testing.T) {
	reg := NewRegistry()
	base := mustDefine(t, reg, "base", WithPrimaryKey("uid"), WithFields("name"))
	child := mustDefine(t, reg, "child", WithParent(base))

	if base.PrimaryKey() != "uid" {
		t.Errorf("PrimaryKey() = %q, want uid", base.PrimaryKey())
	}
	if child.PrimaryKey() != "uid" {
		t.Errorf("child PrimaryKey() = %q, want inherited uid", child.PrimaryKey())
	}
	if got := base.Fields(); !reflect.DeepEqual(got, []string{"name", "uid"}) {
		t.Errorf("Fields() = %v", got)
	}
}

func TestAttach_Order(t *testing.T) {
	et := mustDefine(t, NewRegistry(), "doc")
	et.MustAttach("body", wrap{"a"}).MustAttach("body", wrap{"b"})

	if got := chainIDs(et.Resolve("body")); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("chain = %v, want [a b]", got)
	}
}

func TestAttach_SecondOneWayRejected(t *testing.T) {
	et := mustDefine(t, NewRegistry(), "user")
	et.MustAttach("password", digest{"d1"})

	err := et.Attach("password", digest{"d2"})
	var coe *ChainOrderError
	if !errors.As(err, &coe) {
		t.Fatalf("Attach() error = %v, want ChainOrderError", err)
	}
	if !errors.Is(err, ErrChainOrder) {
		t.Error("ChainOrderError should unwrap to ErrChainOrder")
	}
	if coe.Existing != "d1" || coe.Transformation != "d2" || coe.Field != "password" {
		t.Errorf("ChainOrderError = %+v", coe)
	}
	if got := chainIDs(et.Resolve("password")); !reflect.DeepEqual(got, []string{"d1"}) {
		t.Errorf("chain changed after rejection: %v", got)
	}
}

func TestAttach_TwoWayInsertedBeforeOneWay(t *testing.T) {
	et := mustDefine(t, NewRegistry(), "user")
	et.MustAttach("password", wrap{"a"})
	et.MustAttach("password", digest{"d"})
	et.MustAttach("password", wrap{"b"})

	if got := chainIDs(et.Resolve("password")); !reflect.DeepEqual(got, []string{"a", "b", "d"}) {
		t.Errorf("chain = %v, want [a b d]", got)
	}
}

func TestAttach_Duplicate(t *testing.T) {
	et := mustDefine(t, NewRegistry(), "user")
	et.MustAttach("email", wrap{"a"})
	if err := et.Attach("email", wrap{"a"}); !errors.Is(err, ErrDuplicateTransformation) {
		t.Errorf("Attach(duplicate) error = %v, want ErrDuplicateTransformation", err)
	}

	r := &recorder{id: "rec", events: []Event{EventToPlain}}
	et.MustAttach("email", r)
	if err := et.Attach("email", r); !errors.Is(err, ErrDuplicateTransformation) {
		t.Errorf("Attach(duplicate observer) error = %v, want ErrDuplicateTransformation", err)
	}
}

func TestAttach_ObserversStayOffChain(t *testing.T) {
	et := mustDefine(t, NewRegistry(), "user")
	et.MustAttach("password", digest{"d"})
	et.MustAttach("password", &recorder{id: "rec", events: []Event{EventToPlain}})

	if got := chainIDs(et.Resolve("password")); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("chain = %v, observer must not join it", got)
	}
	if !et.hasEntry("password", "rec") {
		t.Error("hasEntry(rec) = false")
	}
}

type idOnly struct{}

func (idOnly) ID() string { return "nothing" }

func TestAttach_Invalid(t *testing.T) {
	et := mustDefine(t, NewRegistry(), "user")
	if err := et.Attach("x", idOnly{}); !errors.Is(err, ErrInvalidAlgorithm) {
		t.Errorf("Attach(no capabilities) error = %v, want ErrInvalidAlgorithm", err)
	}
	if err := et.Attach("", wrap{"a"}); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Attach(empty field) error = %v, want ErrUnknownField", err)
	}
}

func TestMustAttach_Panics(t *testing.T) {
	et := mustDefine(t, NewRegistry(), "user")
	et.MustAttach("password", digest{"d1"})

	defer func() {
		if recover() == nil {
			t.Error("MustAttach() should panic on chain order violation")
		}
	}()
	et.MustAttach("password", digest{"d2"})
}

func TestFreeze(t *testing.T) {
	et := mustDefine(t, NewRegistry(), "user")
	et.MustAttach("email", wrap{"a"})

	if et.Frozen() {
		t.Fatal("type frozen before first instance")
	}
	et.New()
	if !et.Frozen() {
		t.Fatal("type not frozen after New()")
	}
	if err := et.Attach("email", wrap{"b"}); !errors.Is(err, ErrFrozen) {
		t.Errorf("Attach() after freeze error = %v, want ErrFrozen", err)
	}
	et.Freeze()
	if got := chainIDs(et.Resolve("email")); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("chain = %v", got)
	}
}

func TestResolve_Inheritance(t *testing.T) {
	reg := NewRegistry()
	base := mustDefine(t, reg, "base")
	base.MustAttach("email", wrap{"a"})
	base.MustAttach("name", wrap{"n"})

	child := mustDefine(t, reg, "child", WithParent(base))
	child.MustAttach("email", wrap{"b"})

	if got := chainIDs(child.Resolve("email")); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("own chain = %v, want [b] (chains are not merged)", got)
	}
	if got := chainIDs(child.Resolve("name")); !reflect.DeepEqual(got, []string{"n"}) {
		t.Errorf("inherited chain = %v, want [n]", got)
	}
	if child.Resolve("missing") != nil {
		t.Error("Resolve(missing) should be nil")
	}

	child.New()
	if !base.Frozen() {
		t.Error("freezing a child should freeze its parent")
	}
	if got := chainIDs(child.Resolve("name")); !reflect.DeepEqual(got, []string{"n"}) {
		t.Errorf("frozen inherited chain = %v", got)
	}
	if got := child.Fields(); !reflect.DeepEqual(got, []string{"id", "email", "name"}) {
		t.Errorf("Fields() = %v", got)
	}
}

func TestModifiedFields(t *testing.T) {
	et := mustDefine(t, NewRegistry(), "user")
	et.MustAttach("email", wrap{"enc"})
	et.MustAttach("secret", wrap{"enc"})
	et.MustAttach("password", digest{"hash"})

	if got := et.ModifiedFields("enc"); !reflect.DeepEqual(got, []string{"email", "secret"}) {
		t.Errorf("ModifiedFields(enc) = %v", got)
	}
	if got := et.ModifiedFields("none"); got != nil {
		t.Errorf("ModifiedFields(none) = %v, want nil", got)
	}
}

func TestChain_NilSafe(t *testing.T) {
	var c *Chain
	if c.Len() != 0 || c.Entries() != nil || c.Contains("x") {
		t.Error("nil chain should be empty")
	}
}
