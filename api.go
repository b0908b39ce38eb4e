// Package strata provides a per-field value transformation pipeline that
// converts application values into their persisted form and back.
//
// Each field of a registered entity type carries an ordered chain of
// transformations. Writing a field locks the value through the chain from
// the innermost entry outwards; reading unlocks it from the outermost entry
// inwards. The stored slot always holds the fully locked form, which is what
// gets persisted.
//
// # Transformations
//
// Capabilities are discovered by interface:
//
//   - One-way (Locker only): Hash. At most one per chain, always last.
//   - Two-way (Locker and Unlocker): Encrypt, Localize.
//   - Lifecycle observers (EventHandler only): Stamp, Mask, Redact.
//
// Transformations that need per-instance arguments (Localize needs a locale)
// stay idle until the arguments are bound. Until then reads yield no value
// and writes are held as floating values, flushed once the arguments arrive.
//
// # Registration
//
//	reg := strata.NewRegistry()
//	account, _ := reg.Define("account")
//	hash, _ := strata.NewHash()
//	enc, _ := strata.NewEncrypt(key)
//	account.MustAttach("password", hash)
//	account.MustAttach("secret", enc)
//
// Chains become immutable the first time an instance is created.
//
// # Instances
//
//	e, _ := account.FromPlain(ctx, map[string]any{
//	    "password": "p@ss",
//	    "secret":   map[string]any{"token": "t"},
//	})
//	doc, _ := e.ToStorage(ctx)      // password is a digest, secret a ciphertext tuple
//	e, _ = account.FromStorage(ctx, doc)
//	secret, _ := e.Get("secret")    // {"token": "t"}
//	ok, _ := e.Test("password", "p@ss")
//
// # Struct Bindings
//
// Bind derives an entity type from struct tags:
//
//	type Account struct {
//	    ID       string `json:"id"`
//	    Password string `json:"password" strata.hash:"argon2id" strata.redact:"***"`
//	    Email    string `json:"email" strata.encrypt:"aes-256-gcm" strata.mask:"email"`
//	    Bio      string `json:"bio" strata.localize:"en"`
//	}
//
//	b, _ := strata.Bind[Account](reg, "account", json.New(),
//	    strata.WithKey(strata.EncryptAES256GCM, key))
//
// # Persistence
//
// Model reads and writes entities through a Store. Adapters live in the
// memory, sqlite and mongo packages.
//
// # Observability
//
// Pipeline activity is emitted as capitan signals (see signals.go). An
// Observer installed with WithObserver sees the timing and outcome of every
// transformation call; the metrics package provides a Prometheus Observer.
package strata
