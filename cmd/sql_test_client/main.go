package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
)

// Smoke client: dials the server with the stock driver and runs the probe
// statements the demo backend answers.
func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", "root@tcp(127.0.0.1:3308)/", "data source name")
	flag.Parse()

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "ping: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("ping ok")

	var one int64
	if err := db.QueryRow("SELECT 1").Scan(&one); err != nil {
		fmt.Fprintf(os.Stderr, "SELECT 1: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("SELECT 1 =>", one)

	stmt, err := db.Prepare("SELECT 1")
	if err != nil {
		fmt.Fprintf(os.Stderr, "prepare: %v\n", err)
		os.Exit(1)
	}
	defer stmt.Close()
	if err := stmt.QueryRow().Scan(&one); err != nil {
		fmt.Fprintf(os.Stderr, "execute: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("prepared SELECT 1 =>", one)
}
