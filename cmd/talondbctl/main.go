// talondbctl is a small command-line front end over a talondb file: put,
// get, del, scan and stats. Uses plain os.Args dispatch and no CLI
// framework, matching the rest of this module's ambient style.
//
// Usage:
//
//	talondbctl <path.db> put <key> <value>
//	talondbctl <path.db> get <key>
//	talondbctl <path.db> del <key>
//	talondbctl <path.db> scan [from-key]
//	talondbctl <path.db> stats
package main

import (
	"fmt"
	"os"

	"talondb"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}
	path, cmd, rest := os.Args[1], os.Args[2], os.Args[3:]

	db, err := talondb.Open(path)
	if err != nil {
		fatalf("open %s: %v", path, err)
	}
	defer db.Close()

	switch cmd {
	case "put":
		runPut(db, rest)
	case "get":
		runGet(db, rest)
	case "del":
		runDel(db, rest)
	case "scan":
		runScan(db, rest)
	case "stats":
		runStats(db)
	default:
		usage()
		os.Exit(1)
	}
}

func runPut(db *talondb.DB, args []string) {
	if len(args) != 2 {
		fatalf("put requires <key> <value>")
	}
	ok, err := db.Insert([]byte(args[0]), []byte(args[1]))
	if err != nil {
		fatalf("put: %v", err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "key %q already exists\n", args[0])
		os.Exit(1)
	}
}

func runGet(db *talondb.DB, args []string) {
	if len(args) != 1 {
		fatalf("get requires <key>")
	}
	v, found, err := db.Get([]byte(args[0]))
	if err != nil {
		fatalf("get: %v", err)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "key %q not found\n", args[0])
		os.Exit(1)
	}
	fmt.Println(string(v))
}

func runDel(db *talondb.DB, args []string) {
	if len(args) != 1 {
		fatalf("del requires <key>")
	}
	if err := db.Remove([]byte(args[0])); err != nil {
		fatalf("del: %v", err)
	}
}

func runScan(db *talondb.DB, args []string) {
	var (
		cur *talondb.Cursor
		err error
	)
	if len(args) == 1 {
		cur, err = db.BeginAt([]byte(args[0]))
	} else {
		cur, err = db.Begin()
	}
	if err != nil {
		fatalf("scan: %v", err)
	}
	defer cur.Close()

	for !cur.End() {
		fmt.Printf("%s\t%s\n", cur.Key(), cur.Value())
		cur.Next()
	}
}

func runStats(db *talondb.DB) {
	fmt.Println(db.Stats())
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: talondbctl <path.db> put|get|del|scan|stats [args...]")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
