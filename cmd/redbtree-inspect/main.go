// Command redbtree-inspect is a minimal CLI over a single-file store,
// exercising the table façade end to end — grounded on
// refactor_code/cmd/server/main.go's role as the module's runnable
// entry point, reduced to stdlib flag since none of the example repos
// pull in a CLI framework (see DESIGN.md).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/govetachun/redbtree/internal/pagestore"
	"github.com/govetachun/redbtree/internal/table"
	"github.com/govetachun/redbtree/internal/wal"
)

const defaultPageSize = 4096

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dbPath := fs.String("db", "redbtree.db", "path to the store file")
	tableName := fs.String("table", "default", "table name")
	fs.Parse(os.Args[2:])
	args := fs.Args()

	store, err := pagestore.OpenFile(*dbPath, defaultPageSize)
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	log, err := wal.OpenFile(*dbPath + ".wal")
	if err != nil {
		fatal(err)
	}
	defer log.Close()

	if err := replayPending(store, log); err != nil {
		fatal(err)
	}

	root, err := store.TableRoot(*tableName)
	if err != nil {
		fatal(err)
	}
	var freed []pagestore.PageNumber
	tbl := table.Open(*tableName, root, store, pagestore.Uncommitted, &freed)

	switch cmd {
	case "put":
		if len(args) != 2 {
			fatal(fmt.Errorf("put requires <key> <value>"))
		}
		key, val := []byte(args[0]), []byte(args[1])
		if err := appendAndSync(log, opPut, *tableName, key, val); err != nil {
			fatal(err)
		}
		if _, err := tbl.Insert(key, val); err != nil {
			fatal(err)
		}
		reclaim(store, freed)
		if err := store.SetTableRoot(*tableName, tbl.Root()); err != nil {
			fatal(err)
		}
		store.SetAppliedSeq(log.Seq())
		if err := store.Commit(); err != nil {
			fatal(err)
		}
	case "get":
		if len(args) != 1 {
			fatal(fmt.Errorf("get requires <key>"))
		}
		guard, ok, err := tbl.Get([]byte(args[0]))
		if err != nil {
			fatal(err)
		}
		if !ok {
			fmt.Println("(not found)")
			return
		}
		fmt.Println(string(guard.Bytes()))
		guard.Close()
	case "delete":
		if len(args) != 1 {
			fatal(fmt.Errorf("delete requires <key>"))
		}
		key := []byte(args[0])
		if err := appendAndSync(log, opDelete, *tableName, key, nil); err != nil {
			fatal(err)
		}
		guard, ok, err := tbl.Remove(key)
		if err != nil {
			fatal(err)
		}
		if ok {
			guard.Close()
		}
		reclaim(store, freed)
		if err := store.SetTableRoot(*tableName, tbl.Root()); err != nil {
			fatal(err)
		}
		store.SetAppliedSeq(log.Seq())
		if err := store.Commit(); err != nil {
			fatal(err)
		}
	case "scan":
		it, err := tbl.Range(nil, nil)
		if err != nil {
			fatal(err)
		}
		for it.Valid() {
			fmt.Printf("%s = %s\n", it.Key(), it.Value())
			if err := it.Next(); err != nil {
				fatal(err)
			}
		}
	default:
		usage()
		os.Exit(2)
	}
}

// appendAndSync writes one record and fsyncs the log before the caller is
// allowed to touch the page store — the same "data durable before the
// thing that depends on it" barrier filestore.go's Commit uses between
// its page-data fsync and its master-page fsync.
func appendAndSync(log *wal.FileLog, op byte, table string, key, val []byte) error {
	if _, err := log.Append(encodeRecord(op, table, key, val)); err != nil {
		return err
	}
	return log.Sync()
}

// replayPending reapplies every WAL record past the page store's last
// applied sequence number — the recovery path for a process that crashed
// between a synced WAL append and the page store Commit that would have
// made it durable there too (spec.md §4.13).
func replayPending(store *pagestore.FileStore, log *wal.FileLog) error {
	tables := map[string]*table.Table{}
	freedByTable := map[string]*[]pagestore.PageNumber{}
	lastSeq := store.AppliedSeq()

	openTable := func(name string) (*table.Table, error) {
		if tbl, ok := tables[name]; ok {
			return tbl, nil
		}
		root, err := store.TableRoot(name)
		if err != nil {
			return nil, err
		}
		freed := &[]pagestore.PageNumber{}
		tbl := table.Open(name, root, store, pagestore.Uncommitted, freed)
		tables[name] = tbl
		freedByTable[name] = freed
		return tbl, nil
	}

	err := log.Replay(func(seq uint64, record []byte) error {
		if seq <= store.AppliedSeq() {
			return nil
		}
		op, name, key, val, err := decodeRecord(record)
		if err != nil {
			return err
		}
		tbl, err := openTable(name)
		if err != nil {
			return err
		}
		switch op {
		case opPut:
			guard, err := tbl.Insert(key, val)
			if err != nil {
				return err
			}
			guard.Close()
		case opDelete:
			guard, ok, err := tbl.Remove(key)
			if err != nil {
				return err
			}
			if ok {
				guard.Close()
			}
		default:
			return fmt.Errorf("wal: unknown record op %d", op)
		}
		if seq > lastSeq {
			lastSeq = seq
		}
		return nil
	})
	if err != nil {
		return err
	}
	if lastSeq == store.AppliedSeq() {
		return nil
	}
	for name, tbl := range tables {
		reclaim(store, *freedByTable[name])
		if err := store.SetTableRoot(name, tbl.Root()); err != nil {
			return err
		}
	}
	store.SetAppliedSeq(lastSeq)
	return store.Commit()
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: redbtree-inspect <put|get|delete|scan> [-db path] [-table name] args...")
}

// reclaim hands every page the free policy deferred (because it was
// already committed, so FreeIfUncommitted declined it) to the store's
// own free list, to be handed out again by a future Allocate.
func reclaim(store *pagestore.FileStore, freed []pagestore.PageNumber) {
	for _, n := range freed {
		store.Free(n)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "redbtree-inspect:", err)
	os.Exit(1)
}
