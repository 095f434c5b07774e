// mkfixture converts the JSON item and service catalogs into a single Parquet
// catalog file that `claimcheck catalog import` and CATALOG_SOURCE=parquet read.
// Usage: go run ./cmd/mkfixture --items data/items.json --services data/services.json --out testdata/catalog.parquet
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/gyeh/claimcheck/internal/catalog"
	"github.com/gyeh/claimcheck/internal/model"
	"github.com/gyeh/claimcheck/internal/parquetread"
)

func main() {
	items := flag.String("items", "data/items.json", "items catalog (JSON)")
	services := flag.String("services", "data/services.json", "services catalog (JSON)")
	out := flag.String("out", "testdata/catalog.parquet", "output parquet")
	maxRows := flag.Int("rows", 0, "max rows to output (0 = all)")
	checkOnly := flag.Bool("check", false, "only print stats, don't write")
	flag.Parse()

	cat, err := catalog.LoadJSON(*items, *services)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load catalog: %v\n", err)
		os.Exit(1)
	}

	entries := cat.Entries()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}
		return entries[i].Code < entries[j].Code
	})
	if *maxRows > 0 && len(entries) > *maxRows {
		entries = entries[:*maxRows]
	}

	rows := make([]model.CatalogRow, 0, len(entries))
	byKind := map[model.CatalogKind]int{}
	capped := 0
	for _, e := range entries {
		rows = append(rows, catalog.RowFromEntry(e))
		byKind[e.Kind]++
		if e.Capping != (model.Capping{}) {
			capped++
		}
	}

	fmt.Printf("Entries: %d (items=%d services=%d capped=%d)\n",
		len(rows), byKind[model.KindItem], byKind[model.KindService], capped)
	if *checkOnly {
		return
	}

	if err := parquetread.WriteFile(*out, rows); err != nil {
		fmt.Fprintf(os.Stderr, "write parquet: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
}
