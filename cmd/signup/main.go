// Command signup manages client records, spreadsheet exports and signed
// contract PDFs.
package main

import (
	"context"
	"os"

	"github.com/Alltagsbruecke/SignUp-APP/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
