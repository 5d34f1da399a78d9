// Command kvtree is a line-oriented REPL over a single kvtree database
// file. Run: go run ./cmd/kvtree <path-to-db-file>
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"kvtree"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: kvtree <db-file>")
		os.Exit(1)
	}

	db, err := kvtree.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("db > ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		code := dispatch(db, line)
		if code >= 0 {
			os.Exit(code)
		}
	}
}

// dispatch parses one REPL line and executes it, returning an exit code
// if the line requested shutdown (.exit), or -1 to keep looping.
func dispatch(db *kvtree.DB, line string) int {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".exit":
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
			return 1
		}
		return 0

	case ".constants":
		fmt.Print(kvtree.Constants())

	case ".btree":
		text, err := db.Btree()
		printErrOr(err, text)

	case ".validate":
		if err := db.Validate(); err != nil {
			fmt.Printf("validation failed: %v\n", err)
		} else {
			fmt.Println("ok")
		}

	case ".debug":
		text, err := db.Debug()
		printErrOr(err, text)

	case "insert":
		runInsert(db, fields)

	case "find":
		runFind(db, fields)

	case "update":
		runUpdate(db, fields)

	case "delete":
		runDelete(db, fields)

	case "select":
		runScan(db.Select())

	case "range":
		runRangeCmd(db, fields)

	default:
		fmt.Printf("unrecognized command: %s\n", fields[0])
	}
	return -1
}

func runInsert(db *kvtree.DB, fields []string) {
	if len(fields) != 4 {
		fmt.Println("usage: insert id username email")
		return
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		fmt.Println("invalid id")
		return
	}
	err = db.Insert(uint32(id), kvtree.Row{ID: uint32(id), Username: fields[2], Email: fields[3]})
	printStatus(err)
}

func runFind(db *kvtree.DB, fields []string) {
	if len(fields) != 2 {
		fmt.Println("usage: find id")
		return
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		fmt.Println("invalid id")
		return
	}
	row, err := db.Find(uint32(id))
	if errors.Is(err, kvtree.ErrRecordNotFound) {
		fmt.Println("record not found")
		return
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	printRow(row.ID, row)
}

func runUpdate(db *kvtree.DB, fields []string) {
	if len(fields) != 4 {
		fmt.Println("usage: update id username email")
		return
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		fmt.Println("invalid id")
		return
	}
	err = db.Update(uint32(id), kvtree.Row{ID: uint32(id), Username: fields[2], Email: fields[3]})
	printStatus(err)
}

func runDelete(db *kvtree.DB, fields []string) {
	if len(fields) != 2 {
		fmt.Println("usage: delete id")
		return
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		fmt.Println("invalid id")
		return
	}
	printStatus(db.Delete(uint32(id)))
}

func runRangeCmd(db *kvtree.DB, fields []string) {
	if len(fields) != 3 {
		fmt.Println("usage: range lo hi")
		return
	}
	lo, err1 := strconv.ParseUint(fields[1], 10, 32)
	hi, err2 := strconv.ParseUint(fields[2], 10, 32)
	if err1 != nil || err2 != nil {
		fmt.Println("invalid range bounds")
		return
	}
	runScan(db.RangeScan(uint32(lo), uint32(hi)))
}

func runScan(c *kvtree.Cursor, err error) {
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	for c.Valid() {
		key, row, err := c.Row()
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		printRow(key, row)
		if err := c.Next(); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
	}
}

func printRow(key uint32, row kvtree.Row) {
	fmt.Printf("(%d, %s, %s)\n", key, row.Username, row.Email)
}

func printStatus(err error) {
	switch {
	case err == nil:
		fmt.Println("executed.")
	case errors.Is(err, kvtree.ErrDuplicateKey):
		fmt.Println("error: duplicate key.")
	case errors.Is(err, kvtree.ErrRecordNotFound):
		fmt.Println("error: record not found.")
	case errors.Is(err, kvtree.ErrStringTooLong):
		fmt.Println("error: string too long.")
	default:
		fmt.Printf("error: %v\n", err)
	}
}

func printErrOr(err error, text string) {
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Print(text)
}
