package runtime

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"

	_ "modernc.org/sqlite"
)

// varSnapshot is one Var's persisted shape. Root is only populated for
// the scalar Value kinds that gob can round-trip directly (nil, bool,
// int, float, string, symbol, keyword); a builtin-fn or closure root
// restores as TheNil with HasRoot false, since the host re-`def`s those
// from code on every boot anyway — only the printer-control/config-style
// vars actually need their literal value carried across restarts (spec
// §6.5 "reconnects a fixed set of printer control vars").
type varSnapshot struct {
	Name    string
	Dynamic bool
	Macro   bool
	HasRoot bool
	Root    Value
}

type namespaceSnapshot struct {
	Name    string
	Vars    []varSnapshot
	Refers  map[string]string // name -> "ns/name" of the referred var
	Aliases map[string]string // alias -> namespace name
}

// EnvSnapshot is the serialized `Env` bootstrap cache format (spec §6.5):
// restoring one populates namespaces, vars, refers, aliases, and the
// current-namespace cell.
type EnvSnapshot struct {
	Namespaces []namespaceSnapshot
	CurrentNS  string
}

func init() {
	gob.Register(&Bool{})
	gob.Register(&Int{})
	gob.Register(&Float{})
	gob.Register(&Str{})
	gob.Register(&Symbol{})
	gob.Register(&Keyword{})
	gob.Register(&NilVal{})
}

func snapshotScalar(v Value) (Value, bool) {
	switch v.(type) {
	case *NilVal, *Bool, *Int, *Float, *Str, *Symbol, *Keyword:
		return v, true
	}
	return nil, false
}

// SnapshotRegistry walks every namespace in r and produces a restorable
// EnvSnapshot.
func SnapshotRegistry(r *NamespaceRegistry) *EnvSnapshot {
	snap := &EnvSnapshot{CurrentNS: CurrentNamespace().Name}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, ns := range r.namespaces {
		ns.mu.RLock()
		nsSnap := namespaceSnapshot{Name: name, Refers: map[string]string{}, Aliases: map[string]string{}}
		for vname, v := range ns.vars {
			root, ok := snapshotScalar(v.Get())
			nsSnap.Vars = append(nsSnap.Vars, varSnapshot{
				Name: vname, Dynamic: v.IsDynamic(), Macro: v.IsMacro(), HasRoot: ok, Root: root,
			})
		}
		for rname, v := range ns.refers {
			nsSnap.Refers[rname] = v.NS + "/" + v.Name
		}
		for alias, target := range ns.aliases {
			nsSnap.Aliases[alias] = target.Name
		}
		ns.mu.RUnlock()
		snap.Namespaces = append(snap.Namespaces, nsSnap)
	}
	return snap
}

// RestoreRegistry rebuilds namespaces/vars/refers/aliases from a
// snapshot into r, a second pass resolving refers/aliases once every
// namespace and var already exists (spec §6.5).
func RestoreRegistry(r *NamespaceRegistry, snap *EnvSnapshot) {
	for _, nsSnap := range snap.Namespaces {
		ns := r.FindOrCreate(nsSnap.Name)
		for _, vs := range nsSnap.Vars {
			v := ns.Intern(vs.Name)
			v.SetDynamic(vs.Dynamic)
			v.SetMacro(vs.Macro)
			if vs.HasRoot {
				v.SetRoot(vs.Root)
			}
		}
	}
	for _, nsSnap := range snap.Namespaces {
		ns, _ := r.Find(nsSnap.Name)
		for rname, qualified := range nsSnap.Refers {
			nsName, varName := splitQualified(qualified)
			if srcNS, ok := r.Find(nsName); ok {
				if v, ok := srcNS.Resolve(varName); ok {
					ns.Refer(rname, v)
				}
			}
		}
		for alias, target := range nsSnap.Aliases {
			if tns, ok := r.Find(target); ok {
				ns.AddAlias(alias, tns)
			}
		}
	}
	if nsName := snap.CurrentNS; nsName != "" {
		if ns, ok := r.Find(nsName); ok {
			SetCurrentNamespace(ns)
		}
	}
}

func splitQualified(s string) (ns, name string) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[:i], s[i+1:]
		}
	}
	return "", s
}

// BootstrapStore persists/restores a serialized EnvSnapshot as a sqlite
// BLOB, so repeated process startups can skip re-running bootstrap code
// that only ever produces the same vars (spec §6.5, DOMAIN STACK sqlite
// binding).
type BootstrapStore struct {
	db *sql.DB
}

func OpenBootstrapStore(path string) (*BootstrapStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS bootstrap_cache (
		cache_key TEXT PRIMARY KEY,
		snapshot  BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &BootstrapStore{db: db}, nil
}

func (s *BootstrapStore) Close() error { return s.db.Close() }

// Save gob-encodes snap and upserts it under cacheKey (typically a hash
// of the bootstrap source + this binary's version, so a stale cache from
// an older build is never loaded).
func (s *BootstrapStore) Save(cacheKey string, snap *EnvSnapshot) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT INTO bootstrap_cache (cache_key, snapshot) VALUES (?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET snapshot = excluded.snapshot`,
		cacheKey, buf.Bytes(),
	)
	return err
}

// Load fetches and decodes the snapshot stored under cacheKey, reporting
// ok=false (not an error) on a cold cache.
func (s *BootstrapStore) Load(cacheKey string) (snap *EnvSnapshot, ok bool, err error) {
	var data []byte
	row := s.db.QueryRow(`SELECT snapshot FROM bootstrap_cache WHERE cache_key = ?`, cacheKey)
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	snap = &EnvSnapshot{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(snap); err != nil {
		return nil, false, fmt.Errorf("bootstrap cache: corrupt snapshot for key %q: %w", cacheKey, err)
	}
	return snap, true, nil
}
